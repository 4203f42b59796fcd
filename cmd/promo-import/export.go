package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/sacola/internal/domain/coupon"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100
)

// Export columns, in order. Trailing optional columns may be omitted.
const (
	colCode = iota
	colKind
	colValue
	colMinOrderValue
	colMinItems
	colValidFrom
	colValidUntil
	colMaxUses
	colDescription
	numColumns
)

// fileResult holds the rules parsed from one export, in file order.
type fileResult struct {
	path     string
	rules    []coupon.Rule
	rejected int
}

// readExports parses every file concurrently. Results keep the order of files.
func readExports(ctx context.Context, files []string) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			r, err := readExport(ctx, f)
			if err != nil {
				return errors.Wrapf(err, "read %s", f)
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func readExport(ctx context.Context, path string) (fileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return fileResult{}, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return fileResult{}, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	res, err := parseExport(ctx, gz)
	if err != nil {
		return fileResult{}, err
	}
	res.path = path

	slog.Info("export parsed",
		slog.String("file", path),
		slog.Int("rules", len(res.rules)),
		slog.Int("rejected", res.rejected),
	)
	return res, nil
}

// parseExport reads CSV rows from r. A leading header row is skipped and
// invalid rows are logged and counted, not fatal.
func parseExport(ctx context.Context, r io.Reader) (fileResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var res fileResult
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, errors.Wrapf(err, "line %d", line)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "code") {
			continue
		}

		rule, err := parseRule(record)
		if err != nil {
			res.rejected++
			slog.Warn("row rejected", slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		res.rules = append(res.rules, rule)
	}
}

func parseRule(record []string) (coupon.Rule, error) {
	if len(record) < colMinOrderValue {
		return coupon.Rule{}, errors.Errorf("expected at least %d columns, got %d", colMinOrderValue, len(record))
	}
	field := func(i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	rule := coupon.Rule{
		Code:        coupon.NormalizeCode(field(colCode)),
		Description: field(colDescription),
	}
	if rule.Code == "" {
		return coupon.Rule{}, errors.New("empty code")
	}

	var err error
	if rule.Kind, err = coupon.ParseKind(field(colKind)); err != nil {
		return coupon.Rule{}, err
	}
	if rule.Value, err = optionalDecimal(field(colValue)); err != nil {
		return coupon.Rule{}, errors.Wrap(err, "value")
	}
	if _, err := coupon.NewDiscount(rule.Kind, rule.Value); err != nil {
		return coupon.Rule{}, err
	}
	if rule.MinOrderValue, err = optionalDecimal(field(colMinOrderValue)); err != nil {
		return coupon.Rule{}, errors.Wrap(err, "min order value")
	}
	if rule.MinItems, err = optionalInt(field(colMinItems)); err != nil {
		return coupon.Rule{}, errors.Wrap(err, "min items")
	}
	if rule.MaxUses, err = optionalInt(field(colMaxUses)); err != nil {
		return coupon.Rule{}, errors.Wrap(err, "max uses")
	}
	if rule.ValidFrom, err = optionalTime(field(colValidFrom)); err != nil {
		return coupon.Rule{}, errors.Wrap(err, "valid from")
	}
	if rule.ValidUntil, err = optionalTime(field(colValidUntil)); err != nil {
		return coupon.Rule{}, errors.Wrap(err, "valid until")
	}
	if rule.ValidFrom != nil && rule.ValidUntil != nil && rule.ValidUntil.Before(*rule.ValidFrom) {
		return coupon.Rule{}, errors.New("validity window ends before it starts")
	}
	return rule, nil
}

func optionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.Errorf("negative value %s", s)
	}
	return d, nil
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.Errorf("negative value %d", n)
	}
	return n, nil
}

// optionalTime accepts RFC 3339 timestamps or plain dates (UTC midnight).
func optionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, errors.Errorf("unrecognized time %q", s)
}

type dedupeStats struct {
	duplicates int
	rejected   int
}

// dedupe merges per-file rules in file order. The first occurrence of a code
// wins. The bloom filter answers "definitely new" for most codes; a hit is
// confirmed against the exact set.
func dedupe(results []fileResult) ([]coupon.Rule, dedupeStats) {
	var (
		stats dedupeStats
		out   []coupon.Rule
	)
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	seen := make(map[string]struct{})
	for _, r := range results {
		stats.rejected += r.rejected
		for _, rule := range r.rules {
			if filter.TestString(rule.Code) {
				if _, dup := seen[rule.Code]; dup {
					stats.duplicates++
					slog.Debug("duplicate code skipped", slog.String("code", rule.Code), slog.String("file", r.path))
					continue
				}
			}
			filter.AddString(rule.Code)
			seen[rule.Code] = struct{}{}
			out = append(out, rule)
		}
	}
	return out, stats
}

type ruleWriter interface {
	Upsert(ctx context.Context, rule coupon.Rule) error
}

// writeRules upserts all rules.
func writeRules(ctx context.Context, w ruleWriter, rules []coupon.Rule) error {
	slog.Info("writing coupons to database", slog.Int("count", len(rules)))

	for i, rule := range rules {
		if err := w.Upsert(ctx, rule); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", rule.Code)
		}

		if (i+1)%progressEvery == 0 || i+1 == len(rules) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(rules)))
		}
	}

	return nil
}
