// Package handler exposes the cart, catalog and checkout over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/sacola/internal/domain/auth"
	"github.com/xenking/sacola/internal/domain/order"
	"github.com/xenking/sacola/internal/domain/product"
	"github.com/xenking/sacola/internal/domain/shipping"
	"github.com/xenking/sacola/internal/session"
	"github.com/xenking/sacola/pkg/httpmiddleware"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product and cart
	// responses. When empty, paths are returned as stored.
	ImageBaseURL string
	// APIKeyPepper is the HMAC key API keys are hashed with.
	APIKeyPepper []byte
}

// Handler serves the storefront API.
type Handler struct {
	products     product.Repository
	shipping     shipping.Catalog
	carts        *session.Registry
	orders       *order.Service
	security     *SecurityHandler
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	products product.Repository,
	shippingCatalog shipping.Catalog,
	carts *session.Registry,
	orders *order.Service,
	apikeys auth.Repository,
) *Handler {
	return &Handler{
		products:     products,
		shipping:     shippingCatalog,
		carts:        carts,
		orders:       orders,
		security:     NewSecurityHandler(apikeys, cfg.APIKeyPepper),
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Router returns the API routes. Callers may mount more routes on it.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not_found", "rota não encontrada")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "método não permitido")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{productID}", h.GetProduct)
		r.Get("/shipping", h.ListShipping)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddItem)
			r.Patch("/items/{lineID}", h.UpdateItem)
			r.Delete("/items/{lineID}", h.RemoveItem)
			r.Post("/coupon", h.ApplyCoupon)
			r.Delete("/coupon", h.RemoveCoupon)
			r.Put("/shipping", h.SelectShipping)
		})

		r.With(h.security.Require(auth.ScopeCheckout)).Post("/checkout", h.Checkout)
	})
	return r
}
