package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/sacola/internal/domain/auth"
	"github.com/xenking/sacola/pkg/httpmiddleware"
)

// APIKeyHeader carries the client API key.
const APIKeyHeader = "api_key"

var (
	errUnauthorized = errors.New("unauthorized")
	errForbidden    = errors.New("forbidden")
)

// SecurityHandler authenticates requests via HMAC-SHA256 hashed API keys.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// HashKey returns the hex HMAC-SHA256 of key under pepper, as stored in the
// api_keys table.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate looks up key and checks that it grants scope.
func (s *SecurityHandler) Authenticate(ctx context.Context, key, scope string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, errUnauthorized
	}
	hash := HashKey(s.pepper, key)

	info, err := s.apikeys.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			return nil, errUnauthorized
		}
		return nil, errors.Wrap(err, "find api key")
	}

	// The row could be stale or mismatched; compare in constant time anyway.
	computed, _ := hex.DecodeString(hash)
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(computed, stored) != 1 {
		return nil, errUnauthorized
	}
	if !info.HasScope(scope) {
		return nil, errForbidden
	}
	return info, nil
}

// Require rejects requests without a valid API key granting scope.
func (s *SecurityHandler) Require(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := s.Authenticate(r.Context(), r.Header.Get(APIKeyHeader), scope)
			switch {
			case err == nil:
				ctx := zctx.With(r.Context(), zap.String("api_key", info.Name))
				next.ServeHTTP(w, r.WithContext(ctx))
			case errors.Is(err, errUnauthorized):
				httpmiddleware.WriteError(w, http.StatusUnauthorized, "unauthorized", "chave de API inválida ou ausente")
			case errors.Is(err, errForbidden):
				httpmiddleware.WriteError(w, http.StatusForbidden, "forbidden", "chave de API sem permissão para esta operação")
			default:
				zctx.From(r.Context()).Error("API key lookup failed", zap.Error(err))
				httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal", "erro interno do servidor")
			}
		})
	}
}
