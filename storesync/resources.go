package storesync

// CatalogResource describes one reference-data collection kept consistent
// across the two systems. RepoCandidates is the ordered list of repository
// collection paths that may exist depending on deployment; exactly one of
// StorePath (a fixed commerce collection) or AttributeSlug (terms scoped
// under a commerce attribute) locates the remote counterpart.
type CatalogResource struct {
	Name           string
	RepoCandidates []string
	StorePath      string
	AttributeSlug  string
}

var (
	ResourceCategories = CatalogResource{
		Name:           "category",
		RepoCandidates: []string{"/api/categories", "/api/product-categories"},
		StorePath:      "/products/categories",
	}
	ResourceBrands = CatalogResource{
		Name:           "brand",
		RepoCandidates: []string{"/api/brands", "/api/product-brands"},
		AttributeSlug:  "brand",
	}
	ResourceCollections = CatalogResource{
		Name:           "collection",
		RepoCandidates: []string{"/api/collections", "/api/product-collections"},
		AttributeSlug:  "collection",
	}

	// Order mirrors and chat messages live in the repository only; no
	// commerce counterpart resolution applies.
	repoOrderCandidates   = []string{"/api/orders", "/api/store-orders"}
	repoMessageCandidates = []string{"/api/messages", "/api/chat-messages"}
)

// CatalogResources is the registry the API surface exposes, keyed by the
// plural route segment.
var CatalogResources = map[string]CatalogResource{
	"categories":  ResourceCategories,
	"brands":      ResourceBrands,
	"collections": ResourceCollections,
}
