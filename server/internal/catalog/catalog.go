package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/contextcommerce/contextcommerce/pkg/types"
)

// ErrNotFound is returned when a product id is not in the catalog.
var ErrNotFound = errors.New("catalog: product not found")

// Catalog is an in-memory product list.
type Catalog struct {
	mu       sync.RWMutex
	products []types.Product
	now      func() time.Time // injectable for deterministic tests
}

// New returns a Catalog holding a copy of products.
func New(products []types.Product) *Catalog {
	return &Catalog{
		products: cloneAll(products),
		now:      time.Now,
	}
}

// NewSeeded returns a Catalog holding the built-in demo products.
func NewSeeded() *Catalog {
	return New(Seed())
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// Get returns the product with the given id.
func (c *Catalog) Get(id string) (types.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.ID == id {
			return clone(p), nil
		}
	}
	return types.Product{}, ErrNotFound
}

// Search returns the products whose text contains query (case-insensitive),
// ordered by sortKey. An empty query returns every product.
func (c *Catalog) Search(query, sortKey string) []types.Product {
	term := strings.ToLower(strings.TrimSpace(query))

	c.mu.RLock()
	out := make([]types.Product, 0, len(c.products))
	for _, p := range c.products {
		if term == "" || strings.Contains(haystack(p), term) {
			out = append(out, clone(p))
		}
	}
	c.mu.RUnlock()

	sortProducts(out, sortKey)
	return out
}

// Lookup returns the first product (in catalog order) whose text contains
// keyword. ok is false when nothing matches or keyword is blank.
func (c *Catalog) Lookup(keyword string) (types.Product, bool) {
	term := strings.ToLower(strings.TrimSpace(keyword))
	if term == "" {
		return types.Product{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if strings.Contains(haystack(p), term) {
			return clone(p), true
		}
	}
	return types.Product{}, false
}

// Create validates input, assigns an id and defaults, and appends it.
func (c *Catalog) Create(input types.Product) (types.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return types.Product{}, fmt.Errorf("catalog: name is required")
	}
	if input.Price < 0 {
		return types.Product{}, fmt.Errorf("catalog: price must not be negative")
	}

	p := clone(input)
	p.ID = "p-" + xid.New().String()
	if p.Source == "" {
		p.Source = types.SourceManual
	}
	if p.Status == "" {
		p.Status = types.StatusActive
	}
	p.UpdatedAt = c.now().UTC().Format(time.DateOnly)

	c.mu.Lock()
	c.products = append(c.products, p)
	c.mu.Unlock()
	return clone(p), nil
}

// Delete removes the product with the given id.
func (c *Catalog) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.products {
		if p.ID == id {
			c.products = append(c.products[:i], c.products[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Replace swaps the whole catalog for products.
func (c *Catalog) Replace(products []types.Product) {
	next := cloneAll(products)
	c.mu.Lock()
	c.products = next
	c.mu.Unlock()
}

// LoadSeedFile replaces the catalog with the YAML product list at path.
// On error the current contents are kept.
func (c *Catalog) LoadSeedFile(path string) error {
	products, err := ReadSeedFile(path)
	if err != nil {
		return err
	}
	c.Replace(products)
	return nil
}

// ReadSeedFile parses a YAML list of products. The list must not be empty,
// every entry needs an id and a name, and ids must be unique.
func ReadSeedFile(path string) ([]types.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read seed %q: %w", path, err)
	}
	var products []types.Product
	if err := yaml.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("catalog: parse seed %q: %w", path, err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("catalog: seed %q has no products", path)
	}
	seen := make(map[string]bool, len(products))
	for i, p := range products {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("catalog: seed[%d]: id and name are required", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("catalog: seed[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		if products[i].Source == "" {
			products[i].Source = types.SourceSeed
		}
	}
	return products, nil
}

// haystack is the lowercase text a query is matched against.
func haystack(p types.Product) string {
	parts := make([]string, 0, 4+len(p.Tags))
	for _, s := range []string{p.Name, p.Description, p.Category, p.Brand} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	parts = append(parts, p.Tags...)
	return strings.ToLower(strings.Join(parts, " "))
}

func sortProducts(ps []types.Product, key string) {
	var less func(a, b types.Product) bool
	switch key {
	case "asc":
		less = func(a, b types.Product) bool { return a.Price < b.Price }
	case "dsc":
		less = func(a, b types.Product) bool { return a.Price > b.Price }
	case "date":
		less = func(a, b types.Product) bool { return dateOf(a).After(dateOf(b)) }
	default:
		// collate.Collator keeps a scratch buffer, so it is not shared across goroutines.
		col := collate.New(language.Korean)
		less = func(a, b types.Product) bool {
			if a.AIScore != b.AIScore {
				return a.AIScore > b.AIScore
			}
			if am, bm := a.TotalMatches(), b.TotalMatches(); am != bm {
				return am > bm
			}
			return col.CompareString(a.Name, b.Name) < 0
		}
	}
	sort.SliceStable(ps, func(i, j int) bool { return less(ps[i], ps[j]) })
}

// dateOf parses UpdatedAt; unknown dates sort as the zero time.
func dateOf(p types.Product) time.Time {
	if p.UpdatedAt == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, p.UpdatedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}

func clone(p types.Product) types.Product {
	if p.Margin != nil {
		m := *p.Margin
		p.Margin = &m
	}
	p.Badges = append([]string(nil), p.Badges...)
	p.Tags = append([]string(nil), p.Tags...)
	return p
}

func cloneAll(ps []types.Product) []types.Product {
	out := make([]types.Product, len(ps))
	for i, p := range ps {
		out[i] = clone(p)
	}
	return out
}
