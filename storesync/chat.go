package storesync

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/storeadmin_backend/models"
)

// ChatFetcher retrieves the conversation between two parties with two
// complementary direction-filtered queries, so polling works regardless of
// who sent which message.
type ChatFetcher struct {
	repo       RemoteClient
	paths      *PathResolver
	maxRetries int
}

func NewChatFetcher(repo RemoteClient, maxRetries int) *ChatFetcher {
	return &ChatFetcher{
		repo:       repo,
		paths:      NewPathResolver(repo),
		maxRetries: maxRetries,
	}
}

// Conversation fetches both directions concurrently, each independently
// retried so one direction's exhaustion cannot block the other, then merges
// and stable-sorts by timestamp ascending. Like every read path it
// degrades: a failed direction contributes an empty set and a warning.
func (c *ChatFetcher) Conversation(ctx context.Context, userA string, userB string, since *time.Time) ([]models.ChatMessage, string) {
	path, err := c.paths.Resolve(ctx, "message", repoMessageCandidates)
	if err != nil {
		return []models.ChatMessage{}, err.Error()
	}

	directions := [2]url.Values{
		chatQuery(userA, userB, since),
		chatQuery(userB, userA, since),
	}
	results := [2][]models.ChatMessage{}
	warnings := [2]string{}

	var wg sync.WaitGroup
	for i := range directions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			query := directions[i]
			raw, err := RetryRead(ctx, "fetch messages "+query.Get("sender")+"->"+query.Get("recipient"), c.maxRetries,
				json.RawMessage("[]"), func(ctx context.Context) (json.RawMessage, error) {
					return c.repo.Get(ctx, path, query)
				})
			if err != nil {
				warnings[i] = err.Error()
			}
			results[i] = messagesFromRaw(raw)
		}(i)
	}
	wg.Wait()

	merged := append(results[0], results[1]...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	parts := make([]string, 0, 2)
	for _, w := range warnings {
		if w != "" {
			parts = append(parts, w)
		}
	}
	return merged, strings.Join(parts, "; ")
}

func chatQuery(sender string, recipient string, since *time.Time) url.Values {
	query := url.Values{}
	query.Set("sender", sender)
	query.Set("recipient", recipient)
	if since != nil {
		query.Set("timestamp_gt", since.UTC().Format(time.RFC3339))
	}
	return query
}

func messagesFromRaw(raw json.RawMessage) []models.ChatMessage {
	records, err := NormalizeList(raw)
	if err != nil {
		return []models.ChatMessage{}
	}
	messages := make([]models.ChatMessage, 0, len(records))
	for _, rec := range records {
		msg := models.ChatMessage{
			ID:          rec.ID,
			SenderId:    rec.StringField("sender"),
			RecipientId: rec.StringField("recipient"),
			Text:        rec.StringField("text"),
			Read:        rec.BoolField("read"),
		}
		if ts, ok := rec.TimeField("timestamp"); ok {
			msg.Timestamp = ts
		} else if ts, ok := rec.TimeField("createdAt"); ok {
			msg.Timestamp = ts
		}
		messages = append(messages, msg)
	}
	return messages
}
