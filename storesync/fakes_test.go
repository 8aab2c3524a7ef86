package storesync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"sync"
	"testing"
)

func TestMain(m *testing.M) {
	// Transient-retry sleeps are pure overhead in tests.
	retryBackoffBase = 0
	os.Exit(m.Run())
}

// callJournal records calls across several fakes so tests can assert
// cross-client ordering (e.g. commerce delete before repository delete).
type callJournal struct {
	mu      sync.Mutex
	entries []string
}

func (j *callJournal) add(entry string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.entries = append(j.entries, entry)
	j.mu.Unlock()
}

func (j *callJournal) indexOf(entry string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, e := range j.entries {
		if e == entry {
			return i
		}
	}
	return -1
}

type fakeResponse struct {
	body json.RawMessage
	err  error
}

// fakeRemote is a scripted RemoteClient. Responses are queued per
// "METHOD path" key and consumed in order; getFunc, when set, handles GET
// requests that need to branch on the query (chat directions, slug lookups).
type fakeRemote struct {
	name    string
	journal *callJournal

	mu        sync.Mutex
	responses map[string][]fakeResponse
	calls     []string
	getFunc   func(path string, query url.Values) (json.RawMessage, error)
}

func newFakeRemote(name string) *fakeRemote {
	return &fakeRemote{name: name, responses: map[string][]fakeResponse{}}
}

func (f *fakeRemote) stub(method, path, body string) {
	f.stubErr(method, path, body, nil)
}

func (f *fakeRemote) stubErr(method, path, body string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := method + " " + path
	f.responses[key] = append(f.responses[key], fakeResponse{body: json.RawMessage(body), err: err})
}

func (f *fakeRemote) respond(method, path string) (json.RawMessage, error) {
	f.mu.Lock()
	key := method + " " + path
	f.calls = append(f.calls, key)
	queue := f.responses[key]
	var resp fakeResponse
	scripted := len(queue) > 0
	if scripted {
		resp = queue[0]
		f.responses[key] = queue[1:]
	}
	f.mu.Unlock()

	f.journal.add(f.name + " " + key)
	if !scripted {
		return nil, &RemoteError{Status: http.StatusNotFound, Message: "no stub for " + key}
	}
	return resp.body, resp.err
}

func (f *fakeRemote) callCount(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, call := range f.calls {
		if call == method+" "+path {
			count++
		}
	}
	return count
}

func (f *fakeRemote) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	f.mu.Lock()
	getFunc := f.getFunc
	f.mu.Unlock()
	if getFunc != nil {
		f.mu.Lock()
		f.calls = append(f.calls, "GET "+path)
		f.mu.Unlock()
		f.journal.add(f.name + " GET " + path)
		return getFunc(path, query)
	}
	return f.respond(http.MethodGet, path)
}

func (f *fakeRemote) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return f.respond(http.MethodPost, path)
}

func (f *fakeRemote) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return f.respond(http.MethodPut, path)
}

func (f *fakeRemote) Delete(ctx context.Context, path string) error {
	_, err := f.respond(http.MethodDelete, path)
	return err
}

// fakeLinks is an in-memory LinkStore.
type fakeLinks struct {
	mu    sync.Mutex
	links map[string]int
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{links: map[string]int{}}
}

func (f *fakeLinks) key(entityType, stableId string) string {
	return entityType + "/" + stableId
}

func (f *fakeLinks) FindLink(ctx context.Context, entityType, stableId string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.links[f.key(entityType, stableId)]
	return id, ok, nil
}

func (f *fakeLinks) SaveLink(ctx context.Context, entityType, stableId string, remoteId int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[f.key(entityType, stableId)] = remoteId
	return nil
}

func (f *fakeLinks) DeleteLink(ctx context.Context, entityType, stableId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.links, f.key(entityType, stableId))
	return nil
}

func (f *fakeLinks) linked(entityType, stableId string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.links[f.key(entityType, stableId)]
	return id, ok
}
