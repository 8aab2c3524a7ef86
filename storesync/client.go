package storesync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/storeadmin_backend/utils"
)

// RemoteError is the structured failure both external systems surface.
// Status carries the HTTP status code used for transient-vs-fatal
// classification.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Status, e.Message)
}

// Unwrap maps a remote 404 onto the shared not-found sentinel.
func (e *RemoteError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// RemoteStatus extracts the HTTP status from err, or 0 when err is not a
// RemoteError.
func RemoteStatus(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

// IsNotFound reports whether err means the record does not exist, whether
// as a remote 404 or the shared sentinel. Reads treat this as "no data",
// never as a failure.
func IsNotFound(err error) bool {
	return RemoteStatus(err) == http.StatusNotFound || errors.Is(err, utils.ErrorRecordNotFound)
}

// isConflict reports whether a create failed because the record already
// exists on the remote side. The commerce platform answers 409 for slug
// collisions on most resources but 400 with a term_exists code for
// attribute terms.
func isConflict(err error) bool {
	if RemoteStatus(err) == http.StatusConflict {
		return true
	}
	var re *RemoteError
	if errors.As(err, &re) {
		msg := strings.ToLower(re.Message)
		return strings.Contains(msg, "term_exists") || strings.Contains(msg, "already exists")
	}
	return false
}

// RemoteClient is the boundary to one external system. Both the content
// repository and the commerce platform expose this surface; everything this
// package does goes through it, so tests substitute fakes here.
type RemoteClient interface {
	Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Put(ctx context.Context, path string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, path string) error
}

type httpClient struct {
	baseURL string
	header  func(*http.Request)
	http    *http.Client
}

func (c *httpClient) do(ctx context.Context, method string, path string, query url.Values, body any) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.header(req)

	resp, err := c.http.Do(req)
	if err != nil {
		// Network-level failures look like gateway unavailability to callers.
		return nil, &RemoteError{Status: http.StatusBadGateway, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}

func (c *httpClient) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *httpClient) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

func (c *httpClient) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, path, nil, body)
}

func (c *httpClient) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// NewRepoClient builds the content repository client from env.
func NewRepoClient() (RemoteClient, error) {
	baseURL := utils.StringFromEnv("REPO_API_BASE_URL", "http://localhost:1337")
	token := strings.TrimSpace(utils.StringFromEnv("REPO_API_TOKEN", ""))
	if token == "" {
		return nil, errors.New("REPO_API_TOKEN is empty")
	}
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		header: func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+token)
		},
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// NewStoreClient builds the commerce platform client for one tenant from
// env, e.g. STORE_WEB_API_BASE_URL / STORE_WEB_CONSUMER_KEY /
// STORE_WEB_CONSUMER_SECRET.
func NewStoreClient(tenant string) (RemoteClient, error) {
	prefix := "STORE_" + strings.ToUpper(tenant) + "_"
	baseURL := utils.StringFromEnv(prefix+"API_BASE_URL", "")
	key := strings.TrimSpace(utils.StringFromEnv(prefix+"CONSUMER_KEY", ""))
	secret := strings.TrimSpace(utils.StringFromEnv(prefix+"CONSUMER_SECRET", ""))
	if baseURL == "" || key == "" || secret == "" {
		return nil, fmt.Errorf("commerce credentials for tenant %q are not configured", tenant)
	}
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		header: func(req *http.Request) {
			req.SetBasicAuth(key, secret)
		},
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}
