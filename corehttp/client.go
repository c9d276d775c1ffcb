// Package corehttp is the HTTP client the bridge uses to reach the
// wlanpi core REST API: fetching its OpenAPI document and executing the
// requests the Dispatcher decodes off MQTT topics.
package corehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rgnets/wlanpi-mqtt-bridge/messenger/codec"
	"github.com/rgnets/wlanpi-mqtt-bridge/openapi"
)

// Client talks to the core API the bridge proxies MQTT requests to.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a Client with a 10s request timeout, matching the
// teacher's client.Client default.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Response is the result of executing a request against the core API.
type Response struct {
	StatusCode int
	Reason     string
	Body       any
}

// GetOpenAPIDefinition fetches and decodes the core's OpenAPI document.
func (c *Client) GetOpenAPIDefinition(ctx context.Context) (openapi.Document, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/api/v1/openapi.json", nil)
	if err != nil {
		return openapi.Document{}, err
	}

	var jsonCodec codec.JSON[openapi.Document]
	doc, err := jsonCodec.Unmarshal(body)
	if err != nil {
		return openapi.Document{}, fmt.Errorf("corehttp: decode openapi document: %w", err)
	}
	return doc, nil
}

// Execute issues method against path on the core API. GET requests carry
// query as URL query parameters; every other method sends the caller's
// payload bytes through unmodified as the request body, since the bridge
// treats request/response payloads as opaque JSON text rather than a
// schema it understands.
func (c *Client) Execute(ctx context.Context, method, path string, query map[string]string, payload []byte) (*Response, error) {
	reqPath := path
	var bodyReader io.Reader

	if method == http.MethodGet {
		if len(query) > 0 {
			values := url.Values{}
			for k, v := range query {
				values.Set(k, v)
			}
			reqPath = path + "?" + values.Encode()
		}
	} else if len(payload) > 0 {
		bodyReader = bytes.NewReader(payload)
	}

	body, resp, err := c.do(ctx, method, reqPath, bodyReader)
	if err != nil {
		return nil, err
	}

	var decoded any
	if len(body) > 0 {
		if jsonErr := json.Unmarshal(body, &decoded); jsonErr != nil {
			decoded = string(body)
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Reason:     resp.Status,
		Body:       decoded,
	}, nil
}

// Ping checks that the core API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, resp, err := c.do(ctx, http.MethodGet, "/ping", nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("corehttp: ping returned %s", resp.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("corehttp: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("corehttp: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, fmt.Errorf("corehttp: read response body: %w", err)
	}
	return data, resp, nil
}
