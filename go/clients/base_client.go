package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const formContentType = "application/x-www-form-urlencoded"

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string // server supplied message, empty if none could be found
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API returned status code: %d, message: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API returned status code: %d, response: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is an APIError carrying the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// ServerMessage extracts the server supplied message from err, if any.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

type BaseClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

// NewBaseClient builds a client rooted at baseURL. Cookies set by the backend
// (the session cookie in particular) are kept for the client's lifetime.
func NewBaseClient(baseURL string) *BaseClient {
	// cookiejar.New never returns a non-nil error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	return &BaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		headers: make(map[string]string),
	}
}

func (c *BaseClient) BaseURL() string {
	return c.baseURL
}

func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetHTTPClient replaces the underlying transport client. The cookie jar of
// the replacement is used as is.
func (c *BaseClient) SetHTTPClient(client *http.Client) {
	c.client = client
}

func (c *BaseClient) MakeRequest(ctx context.Context, method, endpoint string, body io.Reader, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    extractMessage(responseBody),
			Body:       string(responseBody),
		}
	}

	return responseBody, nil
}

func (c *BaseClient) Get(ctx context.Context, endpoint string) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodGet, endpoint, nil, nil)
}

// PostForm sends values url-encoded, the way the backend's @RequestParam
// handlers expect them.
func (c *BaseClient) PostForm(ctx context.Context, endpoint string, values url.Values, headers map[string]string) ([]byte, error) {
	h := map[string]string{"Content-Type": formContentType}
	for k, v := range headers {
		h[k] = v
	}
	return c.MakeRequest(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()), h)
}

// extractMessage looks for {"message": ...} then {"error": ...}; a short
// plain text body is used verbatim.
func extractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		return payload.Error
	}

	if strings.HasPrefix(trimmed, "<") || len(trimmed) > 200 {
		return ""
	}
	return trimmed
}
