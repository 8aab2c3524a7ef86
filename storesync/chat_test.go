package storesync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// chatRepo fakes the repository's message collection: the path probe answers
// empty, each direction query returns its scripted page.
func chatRepo(fromAlice, fromBob string, fail string) *fakeRemote {
	repo := newFakeRemote("repo")
	repo.getFunc = func(path string, query url.Values) (json.RawMessage, error) {
		if query.Get("limit") == "1" {
			return json.RawMessage(`[]`), nil
		}
		sender := query.Get("sender")
		if sender == fail {
			return nil, &RemoteError{Status: http.StatusInternalServerError, Message: "down"}
		}
		if sender == "alice" {
			return json.RawMessage(fromAlice), nil
		}
		return json.RawMessage(fromBob), nil
	}
	return repo
}

func TestConversation_MergesBothDirectionsByTimestamp(t *testing.T) {
	fromAlice := `{"data": [{"id": 2, "sender": "alice", "recipient": "bob", "text": "second", "timestamp": "2026-08-29T09:05:00Z"}]}`
	fromBob := `{"data": [{"id": 1, "sender": "bob", "recipient": "alice", "text": "first", "timestamp": "2026-08-29T09:00:00Z"}]}`

	// Merge order must not depend on which direction is passed first.
	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		c := NewChatFetcher(chatRepo(fromAlice, fromBob, ""), 2)
		messages, warning := c.Conversation(context.Background(), pair[0], pair[1], nil)
		if warning != "" {
			t.Fatalf("unexpected warning %q", warning)
		}
		if len(messages) != 2 {
			t.Fatalf("expected both directions merged, got %d messages", len(messages))
		}
		if messages[0].Text != "first" || messages[1].Text != "second" {
			t.Fatalf("expected timestamp-ascending order, got [%q, %q]", messages[0].Text, messages[1].Text)
		}
	}
}

func TestConversation_FailedDirectionDegradesWithWarning(t *testing.T) {
	fromBob := `{"data": [{"id": 1, "sender": "bob", "recipient": "alice", "text": "hello", "timestamp": "2026-08-29T09:00:00Z"}]}`

	c := NewChatFetcher(chatRepo("", fromBob, "alice"), 2)
	messages, warning := c.Conversation(context.Background(), "alice", "bob", nil)

	if warning == "" {
		t.Fatal("expected a warning for the failed direction")
	}
	if len(messages) != 1 || messages[0].Text != "hello" {
		t.Fatalf("expected the healthy direction's messages, got %v", messages)
	}
}

func TestConversation_SinceIsForwardedAsThreshold(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	repo := newFakeRemote("repo")
	repo.getFunc = func(path string, query url.Values) (json.RawMessage, error) {
		if query.Get("limit") == "1" {
			return json.RawMessage(`[]`), nil
		}
		mu.Lock()
		seen = append(seen, query.Get("timestamp_gt"))
		mu.Unlock()
		return json.RawMessage(`[]`), nil
	}

	since := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	c := NewChatFetcher(repo, 2)
	// maxRetries irrelevant here; both directions return empty pages.
	if messages, _ := c.Conversation(context.Background(), "alice", "bob", &since); len(messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(messages))
	}
	if len(seen) != 2 {
		t.Fatalf("expected the threshold on both direction queries, got %v", seen)
	}
	for _, v := range seen {
		if v != "2026-08-29T09:00:00Z" {
			t.Fatalf("expected RFC3339 UTC threshold, got %q", v)
		}
	}
}

func TestMessagesFromRaw_TimestampFallsBackToCreatedAt(t *testing.T) {
	raw := json.RawMessage(`[{"id": 3, "sender": "a", "recipient": "b", "text": "x", "createdAt": "2026-08-29T09:00:00Z", "read": true}]`)
	messages := messagesFromRaw(raw)
	if len(messages) != 1 {
		t.Fatalf("expected one message, got %d", len(messages))
	}
	if messages[0].Timestamp.IsZero() {
		t.Fatal("expected createdAt to fill the timestamp")
	}
	if !messages[0].Read {
		t.Fatal("expected the read flag carried over")
	}
}

func TestConversation_BothDirectionsFailingKeepsBothWarnings(t *testing.T) {
	repo := newFakeRemote("repo")
	repo.getFunc = func(path string, query url.Values) (json.RawMessage, error) {
		if query.Get("limit") == "1" {
			return json.RawMessage(`[]`), nil
		}
		// Distinct messages per direction so the joined warning is checkable.
		return nil, &RemoteError{Status: http.StatusInternalServerError, Message: query.Get("sender") + " side down"}
	}

	c := NewChatFetcher(repo, 2)
	messages, warning := c.Conversation(context.Background(), "alice", "bob", nil)

	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(messages))
	}
	if !strings.Contains(warning, "alice side down") || !strings.Contains(warning, "bob side down") {
		t.Fatalf("expected both direction failures in the warning, got %q", warning)
	}
}
