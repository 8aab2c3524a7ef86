package storesync

import (
	"context"
	"encoding/json"
	"net/http"

	"bitbucket.org/mmdatafocus/storeadmin_backend/config"
	"bitbucket.org/mmdatafocus/storeadmin_backend/models"
	"bitbucket.org/mmdatafocus/storeadmin_backend/utils"
	"github.com/go-playground/validator/v10"
)

// RecordSyncer keeps reference records consistent across the repository and
// the commerce platform. Creation writes the repository first and
// compensates on commerce failure; deletion removes the commerce term first
// and lets the repository outcome decide the call. The order asymmetry is
// intentional behavior carried over from the source system and is under
// review, not to be unified silently.
type RecordSyncer struct {
	repo       RemoteClient
	store      RemoteClient
	paths      *PathResolver
	attrs      *AttributeResolver
	resolver   *Resolver
	links      LinkStore
	validate   *validator.Validate
	maxRetries int
	lock       func(ctx context.Context, stableId string) (func(), error)
}

func NewRecordSyncer(repo RemoteClient, store RemoteClient, links LinkStore, maxRetries int) *RecordSyncer {
	return &RecordSyncer{
		repo:       repo,
		store:      store,
		paths:      NewPathResolver(repo),
		attrs:      NewAttributeResolver(store, maxRetries),
		resolver:   NewResolver(store, links, maxRetries),
		links:      links,
		validate:   validator.New(),
		maxRetries: maxRetries,
		lock:       acquireRecordLock,
	}
}

func (s *RecordSyncer) collection(ctx context.Context, res CatalogResource) (RemoteCollection, error) {
	if res.StorePath != "" {
		return RemoteCollection{Name: res.Name + " collection", Path: res.StorePath}, nil
	}
	return s.attrs.TermsCollection(ctx, res.AttributeSlug)
}

func repoEnvelope(fields map[string]any) map[string]any {
	return map[string]any{"data": fields}
}

func recordFromCanonical(rec CanonicalRecord) models.ReferenceRecord {
	out := models.ReferenceRecord{
		StableId:    rec.StableID,
		NumericId:   rec.ID,
		Name:        rec.StringField("name"),
		Description: rec.StringField("description"),
	}
	if remoteId := rec.IntField("remoteId"); remoteId != 0 {
		out.RemoteId = &remoteId
		out.RemoteSlug = rec.StableID
	}
	return out
}

// CreateRecord creates a reference record so it exists in both systems or in
// neither. Validation failures are rejected before any remote call.
func (s *RecordSyncer) CreateRecord(ctx context.Context, res CatalogResource, in RecordInput) Result {
	if err := s.validate.Struct(in); err != nil {
		return validationFailure(utils.ProcessValidationErrors(err))
	}

	repoPath, err := s.paths.Resolve(ctx, res.Name, res.RepoCandidates)
	if err != nil {
		return failureFromErr("repository path resolution failed", err)
	}

	createdRaw, err := RetryWrite(ctx, "create "+res.Name+" in repository", s.maxRetries, func(ctx context.Context) (json.RawMessage, error) {
		return s.repo.Post(ctx, repoPath, repoEnvelope(map[string]any{
			"name":        in.Name,
			"description": in.Description,
		}))
	})
	if err != nil {
		return failureFromErr("repository create failed", err)
	}

	created, err := NormalizeOne(createdRaw)
	if err != nil || created.StableID == "" {
		return failure(http.StatusBadGateway, "repository returned an unusable create response")
	}
	stableId := created.StableID

	release, err := s.lock(ctx, stableId)
	if err != nil {
		s.compensate(ctx, res.Name, repoPath, stableId)
		return failureFromErr("record lock unavailable", err)
	}
	defer release()

	coll, err := s.collection(ctx, res)
	if err != nil {
		s.compensate(ctx, res.Name, repoPath, stableId)
		return failureFromErr("commerce collection resolution failed", err)
	}

	var remoteId int
	termRaw, err := RetryWrite(ctx, "create "+coll.Name+" term", s.maxRetries, func(ctx context.Context) (json.RawMessage, error) {
		return s.store.Post(ctx, coll.Path, map[string]any{
			"name":        in.Name,
			"slug":        stableId,
			"description": in.Description,
		})
	})
	switch {
	case err == nil:
		term, nerr := NormalizeOne(termRaw)
		if nerr != nil {
			s.compensate(ctx, res.Name, repoPath, stableId)
			return failureFromErr("commerce create returned an unusable response", nerr)
		}
		remoteId = term.ID
	case isConflict(err):
		// A term with this slug already exists, typically from a retried or
		// racing request. Adopt it instead of creating a duplicate.
		remoteId, err = s.resolver.RemoteTermID(ctx, coll, res.Name, stableId)
		if err != nil {
			s.compensate(ctx, res.Name, repoPath, stableId)
			return failureFromErr("commerce record exists but could not be adopted", err)
		}
	default:
		s.compensate(ctx, res.Name, repoPath, stableId)
		return failureFromErr("commerce create failed", err)
	}

	warning := ""
	if err := s.persistBackReference(ctx, repoPath, stableId, remoteId); err != nil {
		// Non-fatal: the slug-based resolver recovers the link on demand.
		config.LogError(config.GetLogger(), "storesync", "CreateRecord", "back-reference not persisted for "+stableId, nil, err)
		warning = "commerce id could not be stored on the repository record"
	}
	if s.links != nil {
		_ = s.links.SaveLink(ctx, res.Name, stableId, remoteId)
	}

	record := models.ReferenceRecord{
		StableId:    stableId,
		NumericId:   created.ID,
		Name:        in.Name,
		Description: in.Description,
		RemoteId:    &remoteId,
		RemoteSlug:  stableId,
	}
	result := success(record)
	result.Warning = warning
	return result
}

func (s *RecordSyncer) persistBackReference(ctx context.Context, repoPath string, stableId string, remoteId int) error {
	_, err := RetryWrite(ctx, "persist remote id on "+stableId, s.maxRetries, func(ctx context.Context) (json.RawMessage, error) {
		return s.repo.Put(ctx, repoPath+"/"+stableId, repoEnvelope(map[string]any{
			"remoteId": remoteId,
		}))
	})
	return err
}

// compensate rolls back the repository create after a failed commerce write.
// The delete is attempted exactly once; if it fails the two systems are left
// knowingly inconsistent and the failure is only logged.
func (s *RecordSyncer) compensate(ctx context.Context, name string, repoPath string, stableId string) {
	if err := s.repo.Delete(ctx, repoPath+"/"+stableId); err != nil {
		config.LogError(config.GetLogger(), "storesync", "compensate",
			"unrecoverable inconsistency: orphaned repository "+name+" "+stableId, nil, err)
	}
}

// UpdateRecord applies a field update to both sides of a linked pair. The
// commerce side is best-effort; the repository side decides the call.
func (s *RecordSyncer) UpdateRecord(ctx context.Context, res CatalogResource, stableId string, in RecordInput) Result {
	if err := s.validate.Struct(in); err != nil {
		return validationFailure(utils.ProcessValidationErrors(err))
	}

	repoPath, err := s.paths.Resolve(ctx, res.Name, res.RepoCandidates)
	if err != nil {
		return failureFromErr("repository path resolution failed", err)
	}

	release, err := s.lock(ctx, stableId)
	if err != nil {
		return failureFromErr("record lock unavailable", err)
	}
	defer release()

	warning := s.propagateToStore(ctx, res, stableId, func(coll RemoteCollection, remoteId int) error {
		return retryDelete(ctx, "update "+coll.Name+" term", s.maxRetries, func(ctx context.Context) error {
			// Slug is deliberately not sent; it stays equal to stableId.
			_, err := s.store.Put(ctx, coll.termPath(remoteId), map[string]any{
				"name":        in.Name,
				"description": in.Description,
			})
			return err
		})
	})

	updatedRaw, err := RetryWrite(ctx, "update "+res.Name+" in repository", s.maxRetries, func(ctx context.Context) (json.RawMessage, error) {
		return s.repo.Put(ctx, repoPath+"/"+stableId, repoEnvelope(map[string]any{
			"name":        in.Name,
			"description": in.Description,
		}))
	})
	if err != nil {
		return failureFromErr("repository update failed", err)
	}

	updated, nerr := NormalizeOne(updatedRaw)
	var record models.ReferenceRecord
	if nerr == nil {
		record = recordFromCanonical(updated)
	} else {
		record = models.ReferenceRecord{StableId: stableId, Name: in.Name, Description: in.Description}
	}
	result := success(record)
	result.Warning = warning
	return result
}

// DeleteRecord removes a linked pair: commerce term first (best-effort),
// repository record second (critical). Opposite order from creation; see
// RecordSyncer doc.
func (s *RecordSyncer) DeleteRecord(ctx context.Context, res CatalogResource, stableId string) Result {
	repoPath, err := s.paths.Resolve(ctx, res.Name, res.RepoCandidates)
	if err != nil {
		return failureFromErr("repository path resolution failed", err)
	}

	release, err := s.lock(ctx, stableId)
	if err != nil {
		return failureFromErr("record lock unavailable", err)
	}
	defer release()

	warning := s.propagateToStore(ctx, res, stableId, func(coll RemoteCollection, remoteId int) error {
		return retryDelete(ctx, "delete "+coll.Name+" term", s.maxRetries, func(ctx context.Context) error {
			return s.store.Delete(ctx, coll.termPath(remoteId)+"?force=true")
		})
	})

	err = retryDelete(ctx, "delete "+res.Name+" in repository", s.maxRetries, func(ctx context.Context) error {
		return s.repo.Delete(ctx, repoPath+"/"+stableId)
	})
	if err != nil && !IsNotFound(err) {
		return failureFromErr("repository delete failed", err)
	}

	if s.links != nil {
		_ = s.links.DeleteLink(ctx, res.Name, stableId)
	}

	result := success(map[string]any{"stableId": stableId, "deleted": true})
	result.Warning = warning
	return result
}

// propagateToStore resolves the commerce counterpart and applies apply to
// it. Every failure on this side is non-critical: it is logged and reported
// back as a warning string ("" when the remote side was fine or the record
// was never linked).
func (s *RecordSyncer) propagateToStore(ctx context.Context, res CatalogResource, stableId string, apply func(RemoteCollection, int) error) string {
	coll, err := s.collection(ctx, res)
	if err != nil {
		config.LogError(config.GetLogger(), "storesync", "propagateToStore", "collection resolution for "+stableId, nil, err)
		return "commerce side skipped: " + err.Error()
	}

	remoteId, err := s.resolver.RemoteTermID(ctx, coll, res.Name, stableId)
	if err != nil {
		if err == ErrNotLinked {
			return ""
		}
		config.LogError(config.GetLogger(), "storesync", "propagateToStore", "resolution for "+stableId, nil, err)
		return "commerce counterpart could not be resolved: " + err.Error()
	}

	if err := apply(coll, remoteId); err != nil {
		config.LogError(config.GetLogger(), "storesync", "propagateToStore", "commerce write for "+stableId, nil, err)
		return "commerce side failed: " + err.Error()
	}
	return ""
}

func retryDelete(ctx context.Context, op string, maxRetries int, fn func(context.Context) error) error {
	_, err := RetryWrite(ctx, op, maxRetries, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ListRecords reads the repository collection. Read paths degrade: any
// failure yields an empty list plus a warning, never an error, so dashboard
// lists keep rendering.
func (s *RecordSyncer) ListRecords(ctx context.Context, res CatalogResource) Result {
	repoPath, err := s.paths.Resolve(ctx, res.Name, res.RepoCandidates)
	if err != nil {
		result := success([]models.ReferenceRecord{})
		result.Warning = err.Error()
		return result
	}

	raw, err := RetryRead(ctx, "list "+res.Name, s.maxRetries, json.RawMessage("[]"), func(ctx context.Context) (json.RawMessage, error) {
		return s.repo.Get(ctx, repoPath, nil)
	})

	records, nerr := NormalizeList(raw)
	out := make([]models.ReferenceRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, recordFromCanonical(rec))
	}

	result := success(out)
	if err != nil {
		result.Warning = "repository list degraded: " + err.Error()
	} else if nerr != nil {
		result.Warning = "repository list could not be parsed: " + nerr.Error()
	}
	return result
}
