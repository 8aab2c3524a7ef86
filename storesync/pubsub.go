package storesync

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"bitbucket.org/mmdatafocus/storeadmin_backend/config"
	"bitbucket.org/mmdatafocus/storeadmin_backend/models"
	"bitbucket.org/mmdatafocus/storeadmin_backend/utils"
	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
)

var errWebTenantRequired = errors.New("web tenant commerce credentials are required")

// PublishOrderSyncRun queues one reconciliation pass on the order-sync
// topic.
func PublishOrderSyncRun(ctx context.Context, payload SyncPubSubPayload) error {
	topicName := utils.StringFromEnv("ORDER_SYNC_TOPIC", "order-sync")

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if utils.EnvBoolDefault("ORDER_SYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler processes order-sync pushes. Malformed envelopes are
// acked (204) so they are not redelivered forever.
func PubSubPushHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !utils.EnvBoolDefault("ENABLE_ORDER_SYNC_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload SyncPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		tenant, ok := models.ParseTenant(payload.Tenant)
		if !ok {
			c.Status(204)
			return
		}

		triggeredBy := payload.TriggeredBy
		if triggeredBy == "" {
			triggeredBy = models.SyncTriggeredSystem
		}
		if _, err := svc.Orders.SyncOrders(c.Request.Context(), tenant, triggeredBy); err != nil {
			config.LogError(config.GetLogger(), "storesync", "PubSubPushHandler", string(tenant), nil, err)
		}
		c.Status(204)
	}
}
