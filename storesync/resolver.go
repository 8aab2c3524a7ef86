package storesync

import (
	"context"
	"errors"
	"net/url"

	"bitbucket.org/mmdatafocus/storeadmin_backend/config"
	"github.com/sirupsen/logrus"
)

// ErrNotLinked means a repository record has no commerce-side counterpart.
var ErrNotLinked = errors.New("record has no linked commerce counterpart")

// LinkStore is a stored cross-reference lookup (models.RecordLinkStore in
// production). It is a fast path only; the slug lookup below can always
// rebuild a missing link.
type LinkStore interface {
	FindLink(ctx context.Context, entityType string, stableId string) (int, bool, error)
	SaveLink(ctx context.Context, entityType string, stableId string, remoteId int) error
	DeleteLink(ctx context.Context, entityType string, stableId string) error
}

// Resolver finds the commerce-side id of a repository record: stored link
// first, then a slug lookup keyed by the record's stable identifier. The
// slug fallback is what lets the system work without a persisted foreign
// key into the other system.
type Resolver struct {
	store      RemoteClient
	links      LinkStore
	maxRetries int
}

func NewResolver(store RemoteClient, links LinkStore, maxRetries int) *Resolver {
	return &Resolver{store: store, links: links, maxRetries: maxRetries}
}

// RemoteTermID returns the commerce-side numeric id for stableId within the
// given collection, or ErrNotLinked when no counterpart exists.
func (r *Resolver) RemoteTermID(ctx context.Context, coll RemoteCollection, entityType string, stableId string) (int, error) {
	if r.links != nil {
		if id, ok, err := r.links.FindLink(ctx, entityType, stableId); err == nil && ok {
			return id, nil
		}
	}

	query := url.Values{}
	query.Set("slug", stableId)
	raw, err := RetryWrite(ctx, "lookup "+coll.Name+" by slug", r.maxRetries, func(ctx context.Context) ([]byte, error) {
		return r.store.Get(ctx, coll.Path, query)
	})
	if err != nil {
		if IsNotFound(err) {
			return 0, ErrNotLinked
		}
		return 0, err
	}

	matches, err := NormalizeList(raw)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, ErrNotLinked
	}
	if len(matches) > 1 {
		// Slugs are supposed to be unique; more than one match is a
		// data-integrity problem upstream. Known compromise: take the first.
		config.GetLogger().WithFields(logrus.Fields{
			"collection": coll.Name,
			"stableId":   stableId,
			"matches":    len(matches),
		}).Warn("multiple commerce records share one slug; using the first")
	}

	id := matches[0].ID
	if r.links != nil {
		_ = r.links.SaveLink(ctx, entityType, stableId, id)
	}
	return id, nil
}
