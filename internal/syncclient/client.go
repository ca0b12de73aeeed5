// Package syncclient is a typed HTTP client for the agent API and the
// polling loop consoles and widgets build on.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"liveassist/internal/entities"
)

// APIError is a non-2xx answer decoded from the {"error","code"} body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code entities.ErrorCode) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == string(code)
}

// Response is the result of one conditional GET.
type Response struct {
	Body         []byte
	ETag         string
	NotModified  bool
	PollInterval time.Duration
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// do sends a JSON call and decodes a 2xx answer into out (when not nil).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Get performs a conditional GET. A 304 answer has NotModified set and no body.
func (c *Client) Get(ctx context.Context, path, etag string) (*Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	out := &Response{ETag: resp.Header.Get("ETag")}
	if secs, err := strconv.Atoi(resp.Header.Get("X-Poll-Interval")); err == nil && secs > 0 {
		out.PollInterval = time.Duration(secs) * time.Second
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		out.NotModified = true
		if out.ETag == "" {
			out.ETag = etag
		}
		return out, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, decodeError(resp)
	}

	if out.Body, err = io.ReadAll(resp.Body); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, tenant, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"tenant":   tenant,
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return "", err
	}
	c.SetToken(out.Token)
	return out.Token, nil
}

func (c *Client) OpenRequests(ctx context.Context) ([]entities.AssistanceRequest, error) {
	var out []entities.AssistanceRequest
	return out, c.do(ctx, http.MethodGet, QueuePath, nil, &out)
}

func (c *Client) Mine(ctx context.Context) ([]entities.AssistanceRequest, error) {
	var out []entities.AssistanceRequest
	return out, c.do(ctx, http.MethodGet, MinePath, nil, &out)
}

func (c *Client) Request(ctx context.Context, id string) (*entities.AssistanceRequest, error) {
	var out entities.AssistanceRequest
	if err := c.do(ctx, http.MethodGet, "/api/requests/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Messages(ctx context.Context, id string, since int64) (*entities.MessagePage, error) {
	var out entities.MessagePage
	if err := c.do(ctx, http.MethodGet, MessagesPath(id, since), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) action(ctx context.Context, id, verb string, body interface{}) (*entities.AssistanceRequest, error) {
	var out entities.AssistanceRequest
	if err := c.do(ctx, http.MethodPost, "/api/requests/"+url.PathEscape(id)+"/"+verb, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Claim(ctx context.Context, id string) (*entities.AssistanceRequest, error) {
	return c.action(ctx, id, "claim", nil)
}

func (c *Client) Resolve(ctx context.Context, id string, note *string) (*entities.AssistanceRequest, error) {
	var body interface{}
	if note != nil {
		body = map[string]string{"internal_note": *note}
	}
	return c.action(ctx, id, "resolve", body)
}

func (c *Client) Cancel(ctx context.Context, id string) (*entities.AssistanceRequest, error) {
	return c.action(ctx, id, "cancel", nil)
}

func (c *Client) Send(ctx context.Context, id, body string) (*entities.MessageEntry, error) {
	var out entities.MessageEntry
	err := c.do(ctx, http.MethodPost, "/api/requests/"+url.PathEscape(id)+"/messages", map[string]string{"body": body}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

const (
	QueuePath = "/api/requests"
	MinePath  = "/api/requests/mine"
)

func MessagesPath(id string, since int64) string {
	return "/api/requests/" + url.PathEscape(id) + "/messages?since=" + strconv.FormatInt(since, 10)
}
