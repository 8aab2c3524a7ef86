package storesync

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"bitbucket.org/mmdatafocus/storeadmin_backend/models"
)

func newTestOrderSyncer(repo, store *fakeRemote) *OrderSyncer {
	stores := map[models.PlatformTenant]RemoteClient{models.TenantWeb: store}
	return NewOrderSyncer(repo, stores, &models.SyncRunStore{}, 2)
}

const remoteOrdersPage = `[
	{"id": 11, "number": "1001", "status": "processing", "total": "120.50", "total_tax": "10.50",
	 "payment_method": "cod", "created_via": "checkout", "date_created": "2026-08-29T09:00:00",
	 "billing": {"first_name": "Aye", "last_name": "Chan"},
	 "line_items": [{"product_id": 7, "sku": "SKU-7", "name": "Shoes", "quantity": 2, "price": "55.00", "total": "110.00"}]},
	{"id": 12, "number": "1002", "status": "on-hold", "total": "40.00",
	 "payment_method": "stripe", "created_via": "rest-api",
	 "billing": {"first_name": "Mg", "last_name": "Mg"},
	 "line_items": []}
]`

func TestSyncOrders_FirstRunCreatesMirrors(t *testing.T) {
	repo := newFakeRemote("repo")
	store := newFakeRemote("store")

	store.stub("GET", "/orders", remoteOrdersPage)
	repo.stub("GET", "/api/orders", `[]`) // path probe
	repo.stub("GET", "/api/orders", `[]`) // empty local projection
	repo.stub("POST", "/api/orders", `{"data": {"id": 1, "documentId": "ord-a"}}`)
	repo.stub("POST", "/api/orders", `{"data": {"id": 2, "documentId": "ord-b"}}`)

	s := newTestOrderSyncer(repo, store)
	summary, err := s.SyncOrders(context.Background(), models.TenantWeb, models.SyncTriggeredManual)
	if err != nil {
		t.Fatalf("unexpected job error: %v", err)
	}
	if summary.TotalSeen != 2 || summary.Created != 2 || summary.Updated != 0 || summary.ErrorCount != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestSyncOrders_SecondRunOnlyUpdates(t *testing.T) {
	repo := newFakeRemote("repo")
	store := newFakeRemote("store")

	store.stub("GET", "/orders", remoteOrdersPage)
	repo.stub("GET", "/api/orders", `[]`)
	repo.stub("GET", "/api/orders", `{"data": [
		{"documentId": "ord-a", "number": "1001", "remoteId": 11},
		{"documentId": "ord-b", "number": "1002", "remoteId": 12}
	]}`)
	repo.stub("PUT", "/api/orders/ord-a", `{"data": {"documentId": "ord-a"}}`)
	repo.stub("PUT", "/api/orders/ord-b", `{"data": {"documentId": "ord-b"}}`)

	s := newTestOrderSyncer(repo, store)
	summary, err := s.SyncOrders(context.Background(), models.TenantWeb, models.SyncTriggeredManual)
	if err != nil {
		t.Fatalf("unexpected job error: %v", err)
	}
	if summary.Created != 0 {
		t.Fatalf("a rerun over unchanged data must create nothing, got %d", summary.Created)
	}
	if summary.Updated != 2 || summary.Skipped != 0 || summary.ErrorCount != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestSyncOrders_MatchByRemoteIdWhenNumberChanged(t *testing.T) {
	repo := newFakeRemote("repo")
	store := newFakeRemote("store")

	store.stub("GET", "/orders", `[{"id": 11, "number": "1001-R", "status": "completed", "total": "10.00",
		"billing": {}, "line_items": []}]`)
	repo.stub("GET", "/api/orders", `[]`)
	repo.stub("GET", "/api/orders", `{"data": [{"documentId": "ord-a", "number": "1001", "remoteId": 11}]}`)
	repo.stub("PUT", "/api/orders/ord-a", `{"data": {"documentId": "ord-a"}}`)

	s := newTestOrderSyncer(repo, store)
	summary, err := s.SyncOrders(context.Background(), models.TenantWeb, models.SyncTriggeredManual)
	if err != nil {
		t.Fatalf("unexpected job error: %v", err)
	}
	if summary.Updated != 1 || summary.Created != 0 {
		t.Fatalf("expected the remote id to match the existing mirror, got %+v", summary)
	}
}

func TestSyncOrders_PerRecordFailureDoesNotFailTheJob(t *testing.T) {
	repo := newFakeRemote("repo")
	store := newFakeRemote("store")

	store.stub("GET", "/orders", remoteOrdersPage)
	repo.stub("GET", "/api/orders", `[]`)
	repo.stub("GET", "/api/orders", `[]`)
	// Exactly one create succeeds; the other answers 500 regardless of which
	// goroutine draws which response.
	repo.stub("POST", "/api/orders", `{"data": {"id": 1, "documentId": "ord-a"}}`)
	repo.stubErr("POST", "/api/orders", "", &RemoteError{Status: http.StatusInternalServerError, Message: "down"})

	s := newTestOrderSyncer(repo, store)
	summary, err := s.SyncOrders(context.Background(), models.TenantWeb, models.SyncTriggeredManual)
	if err != nil {
		t.Fatalf("a record failure must stay inside the summary, got job error %v", err)
	}
	if summary.Created != 1 || summary.ErrorCount != 1 {
		t.Fatalf("expected 1 created and 1 error, got %+v", summary)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("expected the failure message collected, got %v", summary.Errors)
	}
}

func TestSyncOrders_RemoteFetchFailureIsJobFatal(t *testing.T) {
	repo := newFakeRemote("repo")
	store := newFakeRemote("store")
	store.stubErr("GET", "/orders", "", &RemoteError{Status: http.StatusInternalServerError, Message: "down"})

	s := newTestOrderSyncer(repo, store)
	_, err := s.SyncOrders(context.Background(), models.TenantWeb, models.SyncTriggeredManual)
	if err == nil {
		t.Fatal("expected a job-level error when the initial fetch fails")
	}
}

func TestSyncOrders_UnknownTenant(t *testing.T) {
	repo := newFakeRemote("repo")
	store := newFakeRemote("store")

	s := newTestOrderSyncer(repo, store)
	if _, err := s.SyncOrders(context.Background(), models.TenantPOS, models.SyncTriggeredManual); err == nil {
		t.Fatal("expected an error for a tenant without a configured client")
	}
}

func TestSyncOrders_PaginatesUntilShortPage(t *testing.T) {
	repo := newFakeRemote("repo")
	store := newFakeRemote("store")

	store.stub("GET", "/orders", `[{"id": 1, "number": "1", "billing": {}, "line_items": []},
		{"id": 2, "number": "2", "billing": {}, "line_items": []}]`)
	store.stub("GET", "/orders", `[{"id": 3, "number": "3", "billing": {}, "line_items": []}]`)
	repo.stub("GET", "/api/orders", `[]`)
	repo.stub("GET", "/api/orders", `[]`)
	for i := 0; i < 3; i++ {
		repo.stub("POST", "/api/orders", `{"data": {"documentId": "x"}}`)
	}

	s := newTestOrderSyncer(repo, store)
	s.pageSize = 2
	summary, err := s.SyncOrders(context.Background(), models.TenantWeb, models.SyncTriggeredManual)
	if err != nil {
		t.Fatalf("unexpected job error: %v", err)
	}
	if summary.TotalSeen != 3 {
		t.Fatalf("expected 3 orders across 2 pages, got %d", summary.TotalSeen)
	}
	if got := store.callCount("GET", "/orders"); got != 2 {
		t.Fatalf("expected 2 page fetches, got %d", got)
	}
}

func TestSyncOrders_SkipsOrdersWithoutIdentity(t *testing.T) {
	repo := newFakeRemote("repo")
	store := newFakeRemote("store")

	store.stub("GET", "/orders", `[{"id": 0, "number": "", "billing": {}, "line_items": []}]`)
	repo.stub("GET", "/api/orders", `[]`)
	repo.stub("GET", "/api/orders", `[]`)

	s := newTestOrderSyncer(repo, store)
	summary, err := s.SyncOrders(context.Background(), models.TenantWeb, models.SyncTriggeredManual)
	if err != nil {
		t.Fatalf("unexpected job error: %v", err)
	}
	if summary.Skipped != 1 || summary.Created != 0 || summary.ErrorCount != 0 {
		t.Fatalf("expected the identity-less order skipped, got %+v", summary)
	}
}

func TestBuildOrderMirror_NormalizesAndDerives(t *testing.T) {
	raw := json.RawMessage(`{}`)
	remote := storeOrder{
		ID:            11,
		Number:        "1001",
		Status:        "on-hold",
		Total:         json.Number("120.50"),
		TotalTax:      json.Number("10.50"),
		PaymentMethod: "cod",
		CreatedVia:    "checkout",
		DateCreated:   "2026-08-29T09:00:00",
		Billing:       storeOrderName{FirstName: "Aye", LastName: "Chan"},
		LineItems: []storeOrderLine{
			{ProductID: json.Number("7"), Sku: "SKU-7", Name: "Shoes", Quantity: json.Number("2"), Price: json.Number("0"), Total: json.Number("110.00")},
		},
	}

	order := buildOrderMirror(models.TenantWeb, remote, raw)

	if order.Status != models.OrderStatusOnHold {
		t.Fatalf("expected on-hold to map onto the enum, got %q", order.Status)
	}
	if order.PaymentMethod != models.PaymentMethodCOD {
		t.Fatalf("expected cod to map, got %q", order.PaymentMethod)
	}
	if order.Origin != models.OriginWeb {
		t.Fatalf("expected checkout to map to web, got %q", order.Origin)
	}
	if order.CustomerName != "Aye Chan" {
		t.Fatalf("unexpected customer name %q", order.CustomerName)
	}
	if !order.Subtotal.Equal(order.LineItems[0].LineTotal) {
		t.Fatalf("expected subtotal from line totals, got %s", order.Subtotal)
	}
	// Unit price is derived from the line total when the remote price is zero.
	if order.LineItems[0].UnitPrice.String() != "55" {
		t.Fatalf("expected derived unit price 55, got %s", order.LineItems[0].UnitPrice)
	}
	if order.PlacedAt == nil {
		t.Fatal("expected the seconds-precision timestamp to parse")
	}
}

func TestBuildOrderMirror_UnknownValuesFallBack(t *testing.T) {
	remote := storeOrder{
		ID:            12,
		Status:        "weird-status",
		PaymentMethod: "cowrie-shells",
		CreatedVia:    "telepathy",
	}
	order := buildOrderMirror(models.TenantWeb, remote, json.RawMessage(`{}`))

	if order.Status != models.OrderStatusPending {
		t.Fatalf("unknown status must fall back to pending, got %q", order.Status)
	}
	if order.PaymentMethod != models.PaymentMethodOther {
		t.Fatalf("unknown payment method must fall back to other, got %q", order.PaymentMethod)
	}
	if order.Origin != models.OriginUnknown {
		t.Fatalf("unknown origin must fall back to unknown, got %q", order.Origin)
	}
	if order.Number != "12" {
		t.Fatalf("a missing number must fall back to the remote id, got %q", order.Number)
	}
}

func TestSyncOrders_DuplicateInOnePageCreatesOnce(t *testing.T) {
	repo := newFakeRemote("repo")
	store := newFakeRemote("store")

	// The same remote order appears twice in one page; both copies land in
	// the same concurrent batch.
	store.stub("GET", "/orders", `[
		{"id": 11, "number": "1001", "status": "processing", "total": "10.00", "billing": {}, "line_items": []},
		{"id": 11, "number": "1001", "status": "processing", "total": "10.00", "billing": {}, "line_items": []}
	]`)
	repo.stub("GET", "/api/orders", `[]`)
	repo.stub("GET", "/api/orders", `[]`)
	repo.stub("POST", "/api/orders", `{"data": {"id": 1, "documentId": "ord-a"}}`)
	// Depending on timing the duplicate either hits the in-flight reservation
	// (skip) or the freshly indexed mirror (update); it must never create.
	repo.stub("PUT", "/api/orders/ord-a", `{"data": {"documentId": "ord-a"}}`)

	s := newTestOrderSyncer(repo, store)
	summary, err := s.SyncOrders(context.Background(), models.TenantWeb, models.SyncTriggeredManual)
	if err != nil {
		t.Fatalf("unexpected job error: %v", err)
	}
	if summary.Created != 1 {
		t.Fatalf("expected exactly one create for a duplicated order, got %d", summary.Created)
	}
	if summary.ErrorCount != 0 {
		t.Fatalf("unexpected record errors: %v", summary.Errors)
	}
	if summary.Skipped+summary.Updated != 1 {
		t.Fatalf("the duplicate copy must be absorbed, got %+v", summary)
	}
	if got := repo.callCount("POST", "/api/orders"); got != 1 {
		t.Fatalf("expected one mirror create on the repository, got %d", got)
	}
}

func TestSyncOrders_FailedCreateReleasesReservation(t *testing.T) {
	repo := newFakeRemote("repo")
	store := newFakeRemote("store")

	// Two copies of the same order, processed one batch at a time so the
	// ordering is fixed: the first create fails, the second must not be
	// suppressed by the stale reservation.
	store.stub("GET", "/orders", `[
		{"id": 11, "number": "1001", "status": "processing", "total": "10.00", "billing": {}, "line_items": []},
		{"id": 11, "number": "1001", "status": "processing", "total": "10.00", "billing": {}, "line_items": []}
	]`)
	repo.stub("GET", "/api/orders", `[]`)
	repo.stub("GET", "/api/orders", `[]`)
	repo.stubErr("POST", "/api/orders", "", &RemoteError{Status: http.StatusInternalServerError, Message: "down"})
	repo.stub("POST", "/api/orders", `{"data": {"id": 1, "documentId": "ord-a"}}`)

	s := newTestOrderSyncer(repo, store)
	s.batchSize = 1
	summary, err := s.SyncOrders(context.Background(), models.TenantWeb, models.SyncTriggeredManual)
	if err != nil {
		t.Fatalf("unexpected job error: %v", err)
	}
	if summary.Created != 1 {
		t.Fatalf("expected the second copy to create after the first failed, got %+v", summary)
	}
	if summary.ErrorCount != 1 {
		t.Fatalf("expected the first failure in the summary, got %+v", summary)
	}
}
