package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	rtdbTimeout     = 5 * time.Second
	rtdbCASAttempts = 10
)

var rtdbScopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

// RTDBClient talks to a Firebase Realtime Database over its REST
// surface. Transact uses ETag compare-and-swap: the read asks for the
// node's ETag, the write carries if-match, and a 412 reply ships the
// winning snapshot so the retry loop never needs a second read.
type RTDBClient struct {
	http   *resty.Client
	tokens oauth2.TokenSource
}

// NewRTDB builds a client for databaseURL. credentials is either the
// service account JSON itself or a path to a file holding it. Empty
// credentials leave requests unauthenticated, which only works against
// emulators and open rulesets.
func NewRTDB(databaseURL, credentials string) (*RTDBClient, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("store: database url is required")
	}
	c := &RTDBClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(databaseURL, "/")).
			SetTimeout(rtdbTimeout).
			SetHeader("Accept", "application/json"),
	}
	if strings.TrimSpace(credentials) != "" {
		data, err := credentialBytes(credentials)
		if err != nil {
			return nil, err
		}
		conf, err := google.JWTConfigFromJSON(data, rtdbScopes...)
		if err != nil {
			return nil, fmt.Errorf("store: parse service account: %w", err)
		}
		c.tokens = conf.TokenSource(context.Background())
	}
	return c, nil
}

func credentialBytes(credentials string) ([]byte, error) {
	s := strings.TrimSpace(credentials)
	if strings.HasPrefix(s, "{") {
		return []byte(s), nil
	}
	data, err := os.ReadFile(s)
	if err != nil {
		return nil, fmt.Errorf("store: read service account: %w", err)
	}
	return data, nil
}

func (c *RTDBClient) newRequest(ctx context.Context) (*resty.Request, error) {
	req := c.http.R().SetContext(ctx)
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("access token: %w", err)
		}
		req.SetAuthToken(tok.AccessToken)
	}
	return req, nil
}

// nodeURL maps a tree path onto the REST endpoint for that node.
// Segments are URL-escaped for transport only; the server decodes them
// back into the raw tree keys.
func nodeURL(path string) string {
	parts := splitPath(path)
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return "/" + strings.Join(escaped, "/") + ".json"
}

func isNullBody(body []byte) bool {
	t := strings.TrimSpace(string(body))
	return t == "" || t == "null"
}

func (c *RTDBClient) Get(ctx context.Context, path string, dest any) error {
	req, err := c.newRequest(ctx)
	if err != nil {
		return &StoreError{Op: "get", Path: path, Err: err}
	}
	resp, err := req.Get(nodeURL(path))
	if err != nil {
		return &StoreError{Op: "get", Path: path, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return &StoreError{Op: "get", Path: path, Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	if isNullBody(resp.Body()) {
		return ErrNotFound
	}
	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return &StoreError{Op: "get", Path: path, Err: err}
	}
	return nil
}

func (c *RTDBClient) GetLast(ctx context.Context, path string, n int, dest any) error {
	if n <= 0 {
		return nil
	}
	req, err := c.newRequest(ctx)
	if err != nil {
		return &StoreError{Op: "getLast", Path: path, Err: err}
	}
	resp, err := req.
		SetQueryParam("orderBy", `"$key"`).
		SetQueryParam("limitToLast", strconv.Itoa(n)).
		Get(nodeURL(path))
	if err != nil {
		return &StoreError{Op: "getLast", Path: path, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return &StoreError{Op: "getLast", Path: path, Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	if isNullBody(resp.Body()) {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return &StoreError{Op: "getLast", Path: path, Err: err}
	}
	return nil
}

func (c *RTDBClient) Set(ctx context.Context, path string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return &StoreError{Op: "set", Path: path, Err: err}
	}
	req, err := c.newRequest(ctx)
	if err != nil {
		return &StoreError{Op: "set", Path: path, Err: err}
	}
	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Put(nodeURL(path))
	if err != nil {
		return &StoreError{Op: "set", Path: path, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return &StoreError{Op: "set", Path: path, Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	return nil
}

func (c *RTDBClient) Update(ctx context.Context, path string, children map[string]any) error {
	body, err := json.Marshal(children)
	if err != nil {
		return &StoreError{Op: "update", Path: path, Err: err}
	}
	req, err := c.newRequest(ctx)
	if err != nil {
		return &StoreError{Op: "update", Path: path, Err: err}
	}
	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Patch(nodeURL(path))
	if err != nil {
		return &StoreError{Op: "update", Path: path, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return &StoreError{Op: "update", Path: path, Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	return nil
}

// Push writes under a locally generated key instead of the server's
// POST names so ordering matches the in-memory client byte for byte.
func (c *RTDBClient) Push(ctx context.Context, path string, value any) (string, error) {
	key := pushKey(time.Now())
	if err := c.Set(ctx, strings.Trim(path, "/")+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (c *RTDBClient) Transact(ctx context.Context, path string, fn func(current json.RawMessage) (any, error)) error {
	req, err := c.newRequest(ctx)
	if err != nil {
		return &StoreError{Op: "transact", Path: path, Err: err}
	}
	resp, err := req.SetHeader("X-Firebase-ETag", "true").Get(nodeURL(path))
	if err != nil {
		return &StoreError{Op: "transact", Path: path, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return &StoreError{Op: "transact", Path: path, Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	etag := resp.Header().Get("ETag")
	current := rawSnapshot(resp.Body())

	for attempt := 0; attempt < rtdbCASAttempts; attempt++ {
		next, err := fn(current)
		if err != nil {
			return err
		}
		body, err := json.Marshal(next)
		if err != nil {
			return &StoreError{Op: "transact", Path: path, Err: err}
		}
		wreq, err := c.newRequest(ctx)
		if err != nil {
			return &StoreError{Op: "transact", Path: path, Err: err}
		}
		wresp, err := wreq.
			SetHeader("if-match", etag).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			Put(nodeURL(path))
		if err != nil {
			return &StoreError{Op: "transact", Path: path, Err: err}
		}
		switch wresp.StatusCode() {
		case http.StatusOK:
			return nil
		case http.StatusPreconditionFailed:
			etag = wresp.Header().Get("ETag")
			current = rawSnapshot(wresp.Body())
		default:
			return &StoreError{Op: "transact", Path: path, Err: fmt.Errorf("status %d", wresp.StatusCode())}
		}
	}
	return &StoreError{Op: "transact", Path: path, Err: errors.New("contention retries exhausted")}
}

func rawSnapshot(body []byte) json.RawMessage {
	if isNullBody(body) {
		return nil
	}
	return json.RawMessage(append([]byte(nil), body...))
}

func (c *RTDBClient) Delete(ctx context.Context, path string) error {
	req, err := c.newRequest(ctx)
	if err != nil {
		return &StoreError{Op: "delete", Path: path, Err: err}
	}
	resp, err := req.Delete(nodeURL(path))
	if err != nil {
		return &StoreError{Op: "delete", Path: path, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return &StoreError{Op: "delete", Path: path, Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	return nil
}
