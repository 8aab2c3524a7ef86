package storesync

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

const attributesPath = "/products/attributes"

// RemoteCollection is one commerce-side term listing: the place a resolver
// can query by slug and a coordinator can CRUD terms under.
type RemoteCollection struct {
	Name string
	Path string
}

func (c RemoteCollection) termPath(id int) string {
	return fmt.Sprintf("%s/%d", c.Path, id)
}

// AttributeResolver maps a commerce attribute slug (e.g. "brand") to its
// numeric id, which scopes all term CRUD. Lookup is by slug with a
// case-insensitive name fallback, resolved once per attribute and cached.
type AttributeResolver struct {
	store      RemoteClient
	maxRetries int

	mu  sync.Mutex
	ids map[string]int
}

func NewAttributeResolver(store RemoteClient, maxRetries int) *AttributeResolver {
	return &AttributeResolver{
		store:      store,
		maxRetries: maxRetries,
		ids:        map[string]int{},
	}
}

func (a *AttributeResolver) attributeID(ctx context.Context, slug string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id, ok := a.ids[slug]; ok {
		return id, nil
	}

	raw, err := RetryWrite(ctx, "list commerce attributes", a.maxRetries, func(ctx context.Context) ([]byte, error) {
		return a.store.Get(ctx, attributesPath, url.Values{})
	})
	if err != nil {
		return 0, err
	}
	attrs, err := NormalizeList(raw)
	if err != nil {
		return 0, err
	}

	for _, attr := range attrs {
		if attr.StringField("slug") == slug {
			a.ids[slug] = attr.ID
			return attr.ID, nil
		}
	}
	// Some deployments expose prefixed slugs; fall back to matching by name.
	for _, attr := range attrs {
		if strings.EqualFold(attr.StringField("name"), slug) {
			a.ids[slug] = attr.ID
			return attr.ID, nil
		}
	}
	return 0, fmt.Errorf("commerce attribute %q not found", slug)
}

// TermsCollection resolves the term listing for one attribute slug.
func (a *AttributeResolver) TermsCollection(ctx context.Context, slug string) (RemoteCollection, error) {
	id, err := a.attributeID(ctx, slug)
	if err != nil {
		return RemoteCollection{}, err
	}
	return RemoteCollection{
		Name: "attribute " + slug + " terms",
		Path: fmt.Sprintf("%s/%d/terms", attributesPath, id),
	}, nil
}
