package storesync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/storeadmin_backend/config"
	"bitbucket.org/mmdatafocus/storeadmin_backend/models"
	"bitbucket.org/mmdatafocus/storeadmin_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type storeOrder struct {
	ID            int64          `json:"id"`
	Number        string         `json:"number"`
	Status        string         `json:"status"`
	Total         json.Number    `json:"total"`
	TotalTax      json.Number    `json:"total_tax"`
	ShippingTotal json.Number    `json:"shipping_total"`
	DiscountTotal json.Number    `json:"discount_total"`
	PaymentMethod string         `json:"payment_method"`
	CreatedVia    string         `json:"created_via"`
	DateCreated   string         `json:"date_created"`
	Billing       storeOrderName `json:"billing"`
	LineItems     []storeOrderLine `json:"line_items"`
}

type storeOrderName struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type storeOrderLine struct {
	ProductID json.Number `json:"product_id"`
	Sku       string      `json:"sku"`
	Name      string      `json:"name"`
	Quantity  json.Number `json:"quantity"`
	Price     json.Number `json:"price"`
	Total     json.Number `json:"total"`
}

// localOrderRef is the minimal projection of an existing mirror, enough to
// match by business number or remote id in O(1).
type localOrderRef struct {
	StableId string
	Number   string
	RemoteId int64
}

// SyncSummary is the per-invocation aggregate returned to the caller.
// Individual record failures are data inside it, not a job-level fault.
type SyncSummary struct {
	RunId      string                `json:"runId,omitempty"`
	Tenant     models.PlatformTenant `json:"tenant"`
	TotalSeen  int                   `json:"totalSeen"`
	Created    int                   `json:"created"`
	Updated    int                   `json:"updated"`
	Skipped    int                   `json:"skipped"`
	ErrorCount int                   `json:"errorCount"`
	Errors     []string              `json:"errors,omitempty"`
}

// OrderSyncer makes the repository's order mirror reflect the commerce
// platform's current order set, one tenant at a time.
type OrderSyncer struct {
	repo       RemoteClient
	stores     map[models.PlatformTenant]RemoteClient
	paths      *PathResolver
	runs       *models.SyncRunStore
	pageSize   int
	batchSize  int
	maxRetries int
}

func NewOrderSyncer(repo RemoteClient, stores map[models.PlatformTenant]RemoteClient, runs *models.SyncRunStore, maxRetries int) *OrderSyncer {
	return &OrderSyncer{
		repo:       repo,
		stores:     stores,
		paths:      NewPathResolver(repo),
		runs:       runs,
		pageSize:   100,
		batchSize:  10,
		maxRetries: maxRetries,
	}
}

// SyncOrders runs one reconciliation pass. The returned summary reports
// per-record outcomes; the error is non-nil only for job-level failures
// (unknown tenant, initial fetches failing outright).
func (s *OrderSyncer) SyncOrders(ctx context.Context, tenant models.PlatformTenant, triggeredBy string) (*SyncSummary, error) {
	store, ok := s.stores[tenant]
	if !ok {
		return nil, fmt.Errorf("no commerce client configured for tenant %q", tenant)
	}
	// Tag the whole run so every remote-call log line carries the tenant.
	ctx = utils.SetTenantInContext(ctx, string(tenant))

	run := &models.SyncRun{
		PublicId:    uuid.NewString(),
		Tenant:      string(tenant),
		TriggeredBy: triggeredBy,
	}
	if err := s.runs.Begin(ctx, run); err != nil {
		config.LogError(config.GetLogger(), "storesync", "SyncOrders", "run history unavailable", nil, err)
	}
	summary := &SyncSummary{RunId: run.PublicId, Tenant: tenant}

	remote, err := s.fetchRemoteOrders(ctx, store)
	if err != nil {
		s.finishRun(ctx, run, summary, models.SyncRunStatusFailed)
		return summary, fmt.Errorf("remote order fetch failed: %w", err)
	}
	summary.TotalSeen = len(remote)

	ordersPath, err := s.paths.Resolve(ctx, "order", repoOrderCandidates)
	if err != nil {
		s.finishRun(ctx, run, summary, models.SyncRunStatusFailed)
		return summary, err
	}
	byNumber, byRemoteId, err := s.fetchLocalProjection(ctx, ordersPath, tenant)
	if err != nil {
		s.finishRun(ctx, run, summary, models.SyncRunStatusFailed)
		return summary, fmt.Errorf("local order projection failed: %w", err)
	}

	var mu sync.Mutex
	for start := 0; start < len(remote); start += s.batchSize {
		end := start + s.batchSize
		if end > len(remote) {
			end = len(remote)
		}

		var wg sync.WaitGroup
		for _, raw := range remote[start:end] {
			wg.Add(1)
			go func(raw json.RawMessage) {
				defer wg.Done()
				outcome, err := s.syncOne(ctx, ordersPath, tenant, raw, byNumber, byRemoteId, &mu)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					summary.ErrorCount++
					summary.Errors = append(summary.Errors, err.Error())
					return
				}
				switch outcome {
				case outcomeCreated:
					summary.Created++
				case outcomeUpdated:
					summary.Updated++
				case outcomeSkipped:
					summary.Skipped++
				}
			}(raw)
		}
		wg.Wait()
	}

	status := models.SyncRunStatusSuccess
	if summary.ErrorCount > 0 {
		status = models.SyncRunStatusPartial
	}
	s.finishRun(ctx, run, summary, status)

	config.GetLogger().WithFields(logrus.Fields{
		"tenant":  tenant,
		"seen":    summary.TotalSeen,
		"created": summary.Created,
		"updated": summary.Updated,
		"skipped": summary.Skipped,
		"errors":  summary.ErrorCount,
	}).Info("order reconciliation finished")
	return summary, nil
}

func (s *OrderSyncer) finishRun(ctx context.Context, run *models.SyncRun, summary *SyncSummary, status string) {
	run.Status = status
	run.TotalSeen = summary.TotalSeen
	run.Created = summary.Created
	run.Updated = summary.Updated
	run.Skipped = summary.Skipped
	run.ErrorCount = summary.ErrorCount
	if err := s.runs.Finish(ctx, run, summary.Errors); err != nil {
		config.LogError(config.GetLogger(), "storesync", "finishRun", run.PublicId, nil, err)
	}
}

// fetchRemoteOrders pages through the commerce order list sequentially; a
// short page signals the end. Raw payloads are kept so mirrors retain the
// untouched remote order for audit.
func (s *OrderSyncer) fetchRemoteOrders(ctx context.Context, store RemoteClient) ([]json.RawMessage, error) {
	var all []json.RawMessage
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(s.pageSize))

		raw, err := RetryWrite(ctx, fmt.Sprintf("fetch commerce orders page %d", page), s.maxRetries, func(ctx context.Context) (json.RawMessage, error) {
			return store.Get(ctx, "/orders", query)
		})
		if err != nil {
			if IsNotFound(err) && page > 1 {
				return all, nil
			}
			return nil, err
		}

		var batch []json.RawMessage
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, fmt.Errorf("orders page %d: %w", page, err)
		}
		all = append(all, batch...)
		if len(batch) < s.pageSize {
			return all, nil
		}
	}
}

func (s *OrderSyncer) fetchLocalProjection(ctx context.Context, ordersPath string, tenant models.PlatformTenant) (map[string]localOrderRef, map[int64]localOrderRef, error) {
	byNumber := map[string]localOrderRef{}
	byRemoteId := map[int64]localOrderRef{}

	const projectionPageSize = 200
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("fields", "number,remoteId,tenant")
		query.Set("tenant", string(tenant))
		query.Set("page", strconv.Itoa(page))
		query.Set("limit", strconv.Itoa(projectionPageSize))

		raw, err := RetryWrite(ctx, fmt.Sprintf("fetch local orders page %d", page), s.maxRetries, func(ctx context.Context) (json.RawMessage, error) {
			return s.repo.Get(ctx, ordersPath, query)
		})
		if err != nil {
			if IsNotFound(err) {
				return byNumber, byRemoteId, nil
			}
			return nil, nil, err
		}

		records, err := NormalizeList(raw)
		if err != nil {
			return nil, nil, err
		}
		for _, rec := range records {
			ref := localOrderRef{
				StableId: rec.StableID,
				Number:   rec.StringField("number"),
				RemoteId: int64(rec.IntField("remoteId")),
			}
			if ref.Number != "" {
				byNumber[ref.Number] = ref
			}
			if ref.RemoteId != 0 {
				byRemoteId[ref.RemoteId] = ref
			}
		}
		if len(records) < projectionPageSize {
			return byNumber, byRemoteId, nil
		}
	}
}

type syncOutcome int

const (
	outcomeSkipped syncOutcome = iota
	outcomeCreated
	outcomeUpdated
)

func (s *OrderSyncer) syncOne(ctx context.Context, ordersPath string, tenant models.PlatformTenant, raw json.RawMessage, byNumber map[string]localOrderRef, byRemoteId map[int64]localOrderRef, mu *sync.Mutex) (syncOutcome, error) {
	var remote storeOrder
	if err := json.Unmarshal(raw, &remote); err != nil {
		return outcomeSkipped, fmt.Errorf("unreadable remote order: %v", err)
	}
	if remote.Number == "" && remote.ID == 0 {
		return outcomeSkipped, nil
	}

	order := buildOrderMirror(tenant, remote, raw)

	mu.Lock()
	ref, matched := byNumber[order.Number]
	if !matched {
		ref, matched = byRemoteId[order.RemoteNumericId]
	}
	if !matched {
		// Reserve the identity before leaving the critical section, so a
		// duplicate of this order in the same batch cannot also create.
		reservation := localOrderRef{Number: order.Number, RemoteId: order.RemoteNumericId}
		if reservation.Number != "" {
			byNumber[reservation.Number] = reservation
		}
		if reservation.RemoteId != 0 {
			byRemoteId[reservation.RemoteId] = reservation
		}
	}
	mu.Unlock()

	if matched {
		if ref.StableId == "" {
			// A concurrent create in this batch holds the reservation; this
			// copy is a duplicate in the remote feed.
			return outcomeSkipped, nil
		}
		err := retryDelete(ctx, "update order mirror "+order.Number, s.maxRetries, func(ctx context.Context) error {
			_, err := s.repo.Put(ctx, ordersPath+"/"+ref.StableId, repoEnvelope(orderFields(order)))
			return err
		})
		if err != nil {
			return outcomeSkipped, fmt.Errorf("order %s: update failed: %v", order.Number, err)
		}
		return outcomeUpdated, nil
	}

	createdRaw, err := RetryWrite(ctx, "create order mirror "+order.Number, s.maxRetries, func(ctx context.Context) (json.RawMessage, error) {
		return s.repo.Post(ctx, ordersPath, repoEnvelope(orderFields(order)))
	})
	if err != nil {
		// Release the reservation; only a filled index entry may suppress work.
		mu.Lock()
		if ref, ok := byNumber[order.Number]; ok && ref.StableId == "" {
			delete(byNumber, order.Number)
		}
		if ref, ok := byRemoteId[order.RemoteNumericId]; ok && ref.StableId == "" {
			delete(byRemoteId, order.RemoteNumericId)
		}
		mu.Unlock()
		return outcomeSkipped, fmt.Errorf("order %s: create failed: %v", order.Number, err)
	}

	// Index the new mirror so a duplicate inside the same run matches it.
	if created, nerr := NormalizeOne(createdRaw); nerr == nil && created.StableID != "" {
		ref := localOrderRef{StableId: created.StableID, Number: order.Number, RemoteId: order.RemoteNumericId}
		mu.Lock()
		if ref.Number != "" {
			byNumber[ref.Number] = ref
		}
		if ref.RemoteId != 0 {
			byRemoteId[ref.RemoteId] = ref
		}
		mu.Unlock()
	}
	return outcomeCreated, nil
}

func buildOrderMirror(tenant models.PlatformTenant, remote storeOrder, raw json.RawMessage) models.Order {
	number := remote.Number
	if number == "" {
		number = strconv.FormatInt(remote.ID, 10)
	}

	total := decimalFromNumber(remote.Total)
	tax := decimalFromNumber(remote.TotalTax)
	shipping := decimalFromNumber(remote.ShippingTotal)
	discount := decimalFromNumber(remote.DiscountTotal)

	items := make([]models.OrderLineItem, 0, len(remote.LineItems))
	subtotal := decimal.Zero
	for _, line := range remote.LineItems {
		qty := int(intFromNumber(line.Quantity))
		if qty <= 0 {
			qty = 1
		}
		lineTotal := decimalFromNumber(line.Total)
		unitPrice := decimalFromNumber(line.Price)
		if unitPrice.IsZero() && qty > 0 {
			unitPrice = lineTotal.Div(decimal.NewFromInt(int64(qty)))
		}
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderLineItem{
			ProductRef: line.ProductID.String(),
			Sku:        line.Sku,
			Name:       line.Name,
			Quantity:   qty,
			UnitPrice:  unitPrice,
			LineTotal:  lineTotal,
		})
	}

	order := models.Order{
		Number:           number,
		RemoteNumericId:  remote.ID,
		Tenant:           tenant,
		Status:           models.NormalizeOrderStatus(remote.Status),
		PaymentMethod:    models.NormalizePaymentMethod(remote.PaymentMethod),
		Origin:           models.NormalizeOrderOrigin(remote.CreatedVia),
		CustomerName:     joinName(remote.Billing.FirstName, remote.Billing.LastName),
		Total:            total,
		Subtotal:         subtotal,
		Tax:              tax,
		Shipping:         shipping,
		Discount:         discount,
		LineItems:        items,
		RawRemotePayload: raw,
	}
	if t := parseRemoteTime(remote.DateCreated); t != nil {
		order.PlacedAt = t
	}
	return order
}

func orderFields(order models.Order) map[string]any {
	return map[string]any{
		"number":        order.Number,
		"remoteId":      order.RemoteNumericId,
		"tenant":        order.Tenant,
		"status":        order.Status,
		"paymentMethod": order.PaymentMethod,
		"origin":        order.Origin,
		"customerName":  order.CustomerName,
		"total":         order.Total,
		"subtotal":      order.Subtotal,
		"tax":           order.Tax,
		"shipping":      order.Shipping,
		"discount":      order.Discount,
		"placedAt":      order.PlacedAt,
		"lineItems":     order.LineItems,
		"raw":           order.RawRemotePayload,
	}
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

func decimalFromNumber(num json.Number) decimal.Decimal {
	if num.String() == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(num.String()); err == nil {
		return d
	}
	return decimal.Zero
}

func intFromNumber(num json.Number) int64 {
	if n, err := num.Int64(); err == nil {
		return n
	}
	if f, err := num.Float64(); err == nil {
		return int64(f)
	}
	return 0
}

func parseRemoteTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
