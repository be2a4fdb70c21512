package coupon

import (
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// CatalogFile is the YAML representation of a coupon catalog.
type CatalogFile struct {
	Coupons []CatalogEntry `yaml:"coupons"`
}

// CatalogEntry is a single coupon definition in a catalog file. Money values
// are strings to keep them exact.
type CatalogEntry struct {
	Code        string     `yaml:"code"`
	Type        string     `yaml:"type"`
	Value       string     `yaml:"value"`
	MinOrder    string     `yaml:"min_order"`
	MaxDiscount string     `yaml:"max_discount"`
	Description string     `yaml:"description"`
	ValidFrom   *time.Time `yaml:"valid_from"`
	ValidUntil  *time.Time `yaml:"valid_until"`
	MaxUses     int        `yaml:"max_uses"`
	Active      *bool      `yaml:"active"`
}

// IsActive reports whether the entry is enabled. Entries are active unless
// explicitly disabled.
func (e CatalogEntry) IsActive() bool {
	return e.Active == nil || *e.Active
}

// Rule converts the entry into a validated Rule.
func (e CatalogEntry) Rule() (Rule, error) {
	code := NormalizeCode(e.Code)
	if code == "" {
		return Rule{}, errors.New("coupon code is required")
	}

	typ := DiscountType(e.Type)
	if typ != DiscountPercentage && typ != DiscountFlat {
		return Rule{}, errors.Errorf("coupon %s: unsupported discount type %q", code, e.Type)
	}

	value, err := parseAmount(e.Value)
	if err != nil {
		return Rule{}, errors.Wrapf(err, "coupon %s: value", code)
	}
	if !value.IsPositive() {
		return Rule{}, errors.Errorf("coupon %s: value must be positive", code)
	}
	if typ == DiscountPercentage && value.GreaterThan(hundred) {
		return Rule{}, errors.Errorf("coupon %s: percentage above 100", code)
	}
	minOrder, err := parseAmount(e.MinOrder)
	if err != nil {
		return Rule{}, errors.Wrapf(err, "coupon %s: min_order", code)
	}
	maxDiscount, err := parseAmount(e.MaxDiscount)
	if err != nil {
		return Rule{}, errors.Wrapf(err, "coupon %s: max_discount", code)
	}

	return Rule{
		Code:         code,
		DiscountType: typ,
		Value:        value,
		MinOrder:     minOrder,
		MaxDiscount:  maxDiscount,
		Description:  e.Description,
		ValidFrom:    e.ValidFrom,
		ValidUntil:   e.ValidUntil,
		MaxUses:      e.MaxUses,
	}, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// DecodeCatalog reads a YAML catalog.
func DecodeCatalog(r io.Reader) (*CatalogFile, error) {
	var f CatalogFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, errors.Wrap(err, "decode catalog")
	}
	return &f, nil
}

// ReadCatalogFile reads the catalog at path. Files ending in ".gz" are
// decompressed.
func ReadCatalogFile(path string) (*CatalogFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return DecodeCatalog(r)
}

// Catalog is an in-memory Repository populated from a catalog file. It is
// used when no database is configured.
type Catalog struct {
	mu    sync.RWMutex
	rules map[string]*Rule
}

var (
	_ Repository = (*Catalog)(nil)
	_ CodeLister = (*Catalog)(nil)
)

// NewCatalog builds a Catalog from the active entries of f.
func NewCatalog(f *CatalogFile) (*Catalog, error) {
	c := &Catalog{rules: make(map[string]*Rule, len(f.Coupons))}
	for _, e := range f.Coupons {
		if !e.IsActive() {
			continue
		}
		rule, err := e.Rule()
		if err != nil {
			return nil, err
		}
		if _, dup := c.rules[rule.Code]; dup {
			return nil, errors.Errorf("duplicate coupon code %s", rule.Code)
		}
		c.rules[rule.Code] = &rule
	}
	return c, nil
}

// FindByCode returns a copy of the rule for code.
func (c *Catalog) FindByCode(_ context.Context, code string) (*Rule, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rule, ok := c.rules[NormalizeCode(code)]
	if !ok {
		return nil, ErrInvalidCoupon
	}
	cp := *rule
	return &cp, nil
}

// IncrementUses bumps the in-memory usage counter. An exhausted coupon yields
// ErrCouponUsageLimitReached and keeps its count.
func (c *Catalog) IncrementUses(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rule, ok := c.rules[NormalizeCode(code)]
	if !ok {
		return ErrInvalidCoupon
	}
	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return ErrCouponUsageLimitReached
	}
	rule.Uses++
	return nil
}

// ListCodes returns every code in the catalog, sorted.
func (c *Catalog) ListCodes(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	codes := make([]string, 0, len(c.rules))
	for code := range c.rules {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}
