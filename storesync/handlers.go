package storesync

import (
	"net/http"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/storeadmin_backend/config"
	"bitbucket.org/mmdatafocus/storeadmin_backend/models"
	"bitbucket.org/mmdatafocus/storeadmin_backend/utils"
	"github.com/gin-gonic/gin"
)

// Service wires the sync layer for the HTTP surface. Reference data syncs
// against the web storefront's taxonomy; order reconciliation runs per
// tenant.
type Service struct {
	Records *RecordSyncer
	Orders  *OrderSyncer
	Chat    *ChatFetcher
	Runs    *models.SyncRunStore
}

// NewService builds clients and components from env. The Runs store may sit
// on a nil DB until the database connects; history is simply not recorded
// until then.
func NewService(runs *models.SyncRunStore, links LinkStore) (*Service, error) {
	repo, err := NewRepoClient()
	if err != nil {
		return nil, err
	}

	stores := map[models.PlatformTenant]RemoteClient{}
	for _, tenant := range []models.PlatformTenant{models.TenantWeb, models.TenantPOS} {
		client, err := NewStoreClient(string(tenant))
		if err != nil {
			config.GetLogger().Warnf("tenant %s not configured: %v", tenant, err)
			continue
		}
		stores[tenant] = client
	}
	webStore, ok := stores[models.TenantWeb]
	if !ok {
		return nil, errWebTenantRequired
	}

	maxRetries := utils.IntFromEnv("SYNC_MAX_RETRIES", 2)
	return &Service{
		Records: NewRecordSyncer(repo, webStore, links, maxRetries),
		Orders:  NewOrderSyncer(repo, stores, runs, maxRetries),
		Chat:    NewChatFetcher(repo, maxRetries),
		Runs:    runs,
	}, nil
}

func respond(c *gin.Context, result Result) {
	c.JSON(result.Status, result)
}

func resolveResource(c *gin.Context) (CatalogResource, bool) {
	res, ok := CatalogResources[strings.ToLower(c.Param("resource"))]
	if !ok {
		respond(c, failure(http.StatusNotFound, "unknown catalog resource"))
	}
	return res, ok
}

func ListRecordsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, ok := resolveResource(c)
		if !ok {
			return
		}
		respond(c, svc.Records.ListRecords(c.Request.Context(), res))
	}
}

func CreateRecordHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, ok := resolveResource(c)
		if !ok {
			return
		}
		var in RecordInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respond(c, failure(http.StatusBadRequest, "invalid request body"))
			return
		}
		respond(c, svc.Records.CreateRecord(c.Request.Context(), res, in))
	}
}

func UpdateRecordHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, ok := resolveResource(c)
		if !ok {
			return
		}
		var in RecordInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respond(c, failure(http.StatusBadRequest, "invalid request body"))
			return
		}
		respond(c, svc.Records.UpdateRecord(c.Request.Context(), res, c.Param("stableId"), in))
	}
}

func DeleteRecordHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, ok := resolveResource(c)
		if !ok {
			return
		}
		respond(c, svc.Records.DeleteRecord(c.Request.Context(), res, c.Param("stableId")))
	}
}

// TriggerOrderSyncHandler queues a reconciliation run over Pub/Sub, or runs
// it inline when ORDER_SYNC_INLINE=true (useful locally and in tests).
func TriggerOrderSyncHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := models.ParseTenant(c.Param("tenant"))
		if !ok {
			respond(c, failure(http.StatusBadRequest, "unknown tenant"))
			return
		}

		var req TriggerSyncRequest
		_ = c.ShouldBindJSON(&req)
		triggeredBy := req.TriggeredBy
		if triggeredBy == "" {
			triggeredBy = models.SyncTriggeredManual
		}

		if utils.EnvBoolDefault("ORDER_SYNC_INLINE", false) {
			summary, err := svc.Orders.SyncOrders(c.Request.Context(), tenant, triggeredBy)
			if err != nil {
				result := failure(http.StatusBadGateway, err.Error())
				result.Data = summary
				respond(c, result)
				return
			}
			respond(c, success(summary))
			return
		}

		if err := PublishOrderSyncRun(c.Request.Context(), SyncPubSubPayload{
			Tenant:      string(tenant),
			TriggeredBy: triggeredBy,
		}); err != nil {
			respond(c, failure(http.StatusInternalServerError, "could not queue sync run: "+err.Error()))
			return
		}
		respond(c, success(gin.H{"queued": true, "tenant": tenant}))
	}
}

func SyncHistoryHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		runs, err := svc.Runs.Recent(c.Request.Context(), c.Query("tenant"), utils.IntFromEnv("SYNC_HISTORY_LIMIT", 20))
		if err != nil {
			// Read path: degrade, never error.
			result := success([]models.SyncRun{})
			result.Warning = err.Error()
			respond(c, result)
			return
		}
		if runs == nil {
			runs = []models.SyncRun{}
		}
		respond(c, success(runs))
	}
}

func SyncRunDetailHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, errs, err := svc.Runs.ByPublicId(c.Request.Context(), c.Param("id"))
		if err != nil {
			result := success(nil)
			result.Warning = err.Error()
			respond(c, result)
			return
		}
		if run == nil {
			respond(c, failure(http.StatusNotFound, "sync run not found"))
			return
		}
		respond(c, success(gin.H{"run": run, "errors": errs}))
	}
}

func SyncReportExportHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		runs, err := svc.Runs.Recent(c.Request.Context(), c.Query("tenant"), utils.IntFromEnv("SYNC_REPORT_LIMIT", 200))
		if err != nil {
			respond(c, failure(http.StatusInternalServerError, err.Error()))
			return
		}

		file, err := BuildSyncRunReport(runs)
		if err != nil {
			respond(c, failure(http.StatusInternalServerError, err.Error()))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="order-sync-runs.xlsx"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := file.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "storesync", "SyncReportExportHandler", "stream report", nil, err)
		}
	}
}

func ChatHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		me := strings.TrimSpace(c.Query("me"))
		them := strings.TrimSpace(c.Query("them"))
		if me == "" || them == "" {
			respond(c, failure(http.StatusBadRequest, "me and them are required"))
			return
		}

		var since *time.Time
		if raw := strings.TrimSpace(c.Query("since")); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				respond(c, failure(http.StatusBadRequest, "since must be RFC3339"))
				return
			}
			since = &t
		}

		messages, warning := svc.Chat.Conversation(c.Request.Context(), me, them, since)
		result := success(messages)
		result.Warning = warning
		respond(c, result)
	}
}
