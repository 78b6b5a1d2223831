package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/seentics/seentics-go/internal/logging"
)

const defaultRequestTimeout = 5 * time.Second

// APIClient talks to the collection API. Post and Get surface delivery
// errors to the caller so queues can retry; Beacon is the unload path:
// fire-and-forget on a detached goroutine, failures unobservable by design.
type APIClient struct {
	baseURL string
	timeout time.Duration
	client  *fasthttp.Client
}

// NewAPIClient builds a client for the given API host, e.g.
// "https://api.seentics.com".
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: defaultRequestTimeout,
		client: &fasthttp.Client{
			ReadTimeout:  defaultRequestTimeout,
			WriteTimeout: defaultRequestTimeout,
		},
	}
}

// Post sends a JSON body to path (relative to the API host).
func (c *APIClient) Post(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", path, err)
	}
	return c.do(fasthttp.MethodPost, path, payload, nil)
}

// Get fetches path and decodes the JSON response into out when non-nil.
func (c *APIClient) Get(path string, out any) error {
	return c.do(fasthttp.MethodGet, path, nil, out)
}

// Beacon delivers a JSON body without blocking the caller and without any
// completion signal, mirroring navigator.sendBeacon.
func (c *APIClient) Beacon(path string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		return
	}
	go func() {
		if err := c.do(fasthttp.MethodPost, path, payload, nil); err != nil {
			logging.L().Debug("beacon delivery failed", "path", path, "error", err)
		}
	}()
}

func (c *APIClient) do(method, path string, body []byte, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if status := resp.StatusCode(); status >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, status)
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}
