package routes

import (
	"slices"
	"time"

	"github.com/jonwraymond/apicache/cache"
)

// Family is one group of cached upstream routes sharing a TTL rule and tags.
type Family struct {
	Name string

	// Tags are attached to every key the family serves.
	Tags []string

	TTL cache.TTLFunc

	// Timeout bounds each upstream call.
	Timeout time.Duration

	// StaleFallback serves the last known copy when upstream fails.
	StaleFallback bool
}

// Families lists the cached route families.
type Families struct {
	Product     Family
	ProductRoot Family
	Search      Family
	Suppliers   Family
}

// Tags used by the route families.
const (
	TagProducts    = "products"
	TagProductsAll = "products:all"
	TagSearch      = "search"
	TagSuppliers   = "suppliers"
)

var suppliersPolicy = cache.Policy{
	DefaultTTL: 300 * time.Second,
	Rules: []cache.TTLRule{
		{
			Match: cache.AnyOf(cache.HasSuffix("/search"), cache.Contains("/subcategory/search")),
			TTL:   300 * time.Second,
		},
		{
			Match: cache.HasSuffix("/all", "/name"),
			TTL:   900 * time.Second,
		},
	},
}

// SuppliersTTL picks the supplier TTL from the request path: search
// listings refresh every 5 minutes, full and by-name listings every 15.
func SuppliersTTL(pathname string) time.Duration {
	return suppliersPolicy.TTL(pathname)
}

// DefaultFamilies returns the storefront families, all using timeout for
// upstream calls and falling back to stale copies.
func DefaultFamilies(timeout time.Duration) Families {
	return Families{
		Product: Family{
			Name:          "product",
			Tags:          []string{TagProducts},
			TTL:           cache.FixedPolicy(600 * time.Second).Func(),
			Timeout:       timeout,
			StaleFallback: true,
		},
		ProductRoot: Family{
			Name:          "product_root",
			Tags:          []string{TagProducts, TagProductsAll},
			TTL:           cache.FixedPolicy(300 * time.Second).Func(),
			Timeout:       timeout,
			StaleFallback: true,
		},
		Search: Family{
			Name:          "search",
			Tags:          []string{TagSearch},
			TTL:           cache.FixedPolicy(120 * time.Second).Func(),
			Timeout:       timeout,
			StaleFallback: true,
		},
		Suppliers: Family{
			Name:          "suppliers",
			Tags:          []string{TagSuppliers},
			TTL:           SuppliersTTL,
			Timeout:       timeout,
			StaleFallback: true,
		},
	}
}

// AllTags returns every tag used by the families, sorted and deduplicated.
func (f Families) AllTags() []string {
	var tags []string
	for _, fam := range []Family{f.Product, f.ProductRoot, f.Search, f.Suppliers} {
		tags = append(tags, fam.Tags...)
	}
	slices.Sort(tags)
	return slices.Compact(tags)
}
