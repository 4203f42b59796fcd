package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/sacola/internal/domain/coupon"
)

func writeExport(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		name    string
		record  []string
		want    coupon.Rule
		wantErr bool
	}{
		{
			name:   "percentage with all columns",
			record: []string{" verao20 ", "percent", "20", "150,00", "2", "2026-01-01", "2026-03-31T23:59:59Z", "500", "Verão 20%"},
			want: coupon.Rule{
				Code:          "VERAO20",
				Kind:          coupon.KindPercentage,
				Value:         decimal.NewFromInt(20),
				MinOrderValue: decimal.RequireFromString("150.00"),
				MinItems:      2,
				MaxUses:       500,
				Description:   "Verão 20%",
			},
		},
		{
			name:   "free shipping without value",
			record: []string{"FRETE", "free_shipping", ""},
			want:   coupon.Rule{Code: "FRETE", Kind: coupon.KindFreeShipping, Value: decimal.Zero},
		},
		{name: "too few columns", record: []string{"X", "fixed"}, wantErr: true},
		{name: "empty code", record: []string{" ", "fixed", "10"}, wantErr: true},
		{name: "unknown kind", record: []string{"X", "bogo", "1"}, wantErr: true},
		{name: "percentage above 100", record: []string{"X", "percentage", "120"}, wantErr: true},
		{name: "negative amount", record: []string{"X", "fixed", "-5"}, wantErr: true},
		{name: "bad min items", record: []string{"X", "fixed", "5", "", "dois"}, wantErr: true},
		{name: "bad date", record: []string{"X", "fixed", "5", "", "", "31/12/2026"}, wantErr: true},
		{name: "inverted window", record: []string{"X", "fixed", "5", "", "", "2026-02-01", "2026-01-01"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRule(tt.record)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Code, got.Code)
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.True(t, tt.want.Value.Equal(got.Value), "value %s", got.Value)
			assert.True(t, tt.want.MinOrderValue.Equal(got.MinOrderValue), "min order %s", got.MinOrderValue)
			assert.Equal(t, tt.want.MinItems, got.MinItems)
			assert.Equal(t, tt.want.MaxUses, got.MaxUses)
			assert.Equal(t, tt.want.Description, got.Description)
		})
	}
}

func TestParseRule_Window(t *testing.T) {
	got, err := parseRule([]string{"X", "fixed", "5", "", "", "2026-01-01", "2026-03-31T23:59:59Z"})
	require.NoError(t, err)
	require.NotNil(t, got.ValidFrom)
	require.NotNil(t, got.ValidUntil)
	assert.True(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Equal(*got.ValidFrom))
	assert.True(t, time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC).Equal(*got.ValidUntil))
}

func TestParseExport_HeaderAndRejects(t *testing.T) {
	in := strings.Join([]string{
		"code,kind,value,min_order_value",
		"DESCONTO10,percentage,10",
		"QUEBRADO,percentage,abc",
		"FRETEGRATIS,free_shipping,",
	}, "\n")

	res, err := parseExport(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, res.rules, 2)
	assert.Equal(t, "DESCONTO10", res.rules[0].Code)
	assert.Equal(t, "FRETEGRATIS", res.rules[1].Code)
	assert.Equal(t, 1, res.rejected)
}

func TestReadExports_FirstOccurrenceWins(t *testing.T) {
	dir := t.TempDir()
	a := writeExport(t, dir, "promotions-1.csv.gz", "code,kind,value\nVERAO,percentage,10\nINVERNO,fixed,30\n")
	b := writeExport(t, dir, "promotions-2.csv.gz", "verao,percentage,50\nPRIMAVERA,free_shipping,\nINVERNO,fixed,99\nRUIM,,\n")

	results, err := readExports(context.Background(), []string{a, b})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, a, results[0].path)

	rules, stats := dedupe(results)
	require.Len(t, rules, 3)
	assert.Equal(t, 2, stats.duplicates)
	assert.Equal(t, 1, stats.rejected)

	byCode := make(map[string]coupon.Rule)
	for _, r := range rules {
		byCode[r.Code] = r
	}
	assert.True(t, byCode["VERAO"].Value.Equal(decimal.NewFromInt(10)))
	assert.True(t, byCode["INVERNO"].Value.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, coupon.KindFreeShipping, byCode["PRIMAVERA"].Kind)
}

func TestReadExports_MissingFile(t *testing.T) {
	_, err := readExports(context.Background(), []string{filepath.Join(t.TempDir(), "nope.csv.gz")})
	assert.Error(t, err)
}

type fakeWriter struct {
	rules []coupon.Rule
	fail  string
}

func (w *fakeWriter) Upsert(_ context.Context, rule coupon.Rule) error {
	if rule.Code == w.fail {
		return errors.New("boom")
	}
	w.rules = append(w.rules, rule)
	return nil
}

func TestWriteRules(t *testing.T) {
	rules := []coupon.Rule{{Code: "A"}, {Code: "B"}, {Code: "C"}}

	w := &fakeWriter{}
	require.NoError(t, writeRules(context.Background(), w, rules))
	assert.Len(t, w.rules, 3)

	w = &fakeWriter{fail: "B"}
	err := writeRules(context.Background(), w, rules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert coupon B")
	assert.Len(t, w.rules, 1)
}
