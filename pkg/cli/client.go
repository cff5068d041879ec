package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the gateway's /v1 surface. The token rides as a Bearer
// header and the client key goes out as X-Client-Id so the gateway's rate
// limiter attributes the request to the right dashboard tile.
type Client struct {
	BaseURL    string
	Token      string
	ClientKey  string
	HTTPClient *http.Client
}

// NewClient builds a Client for the given base URL. A trailing slash on the
// URL is tolerated and removed.
func NewClient(baseURL, token, clientKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		ClientKey:  clientKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx gateway response decoded into something printable.
type APIError struct {
	HTTPStatus        int
	Code              int
	Message           string
	RetryAfterSeconds int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.HTTPStatus, e.Message)
}

// Do issues a request against the gateway. The path is relative to /v1.
// The caller owns the response body unless it hands the response to
// CheckError or ReadBody.
func (c *Client) Do(method, path string, query url.Values, body interface{}) (*http.Response, error) {
	u := c.BaseURL + "/v1" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.ClientKey != "" {
		req.Header.Set("X-Client-Id", c.ClientKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

// CheckError turns a non-2xx response into an *APIError. The gateway answers
// errors as {"code","message"} but the submit and execute surfaces use an
// "error" field instead, so both shapes are tried before falling back to the
// raw body.
func CheckError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{HTTPStatus: resp.StatusCode}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			apiErr.RetryAfterSeconds = secs
		}
	}

	data, err := ReadBody(resp)
	if err != nil {
		apiErr.Message = "unreadable error body"
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(data))

	var parsed struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil {
		apiErr.Code = parsed.Code
		if parsed.Message != "" {
			apiErr.Message = parsed.Message
		} else if parsed.Error != "" {
			apiErr.Message = parsed.Error
		}
	}
	return apiErr
}

// ReadBody drains and closes the response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return data, nil
}

// DoJSON runs Do, checks the status, and decodes the body into out. Passing a
// nil out discards the body.
func (c *Client) DoJSON(method, path string, query url.Values, body, out interface{}) error {
	resp, err := c.Do(method, path, query, body)
	if err != nil {
		return err
	}
	if err := CheckError(resp); err != nil {
		return err
	}
	data, err := ReadBody(resp)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// FetchAllRecords pages through an audit listing by following
// next_page_token until the server stops returning one. The base query is
// copied per page, never mutated.
func FetchAllRecords(c *Client, path string, baseQuery url.Values) ([]json.RawMessage, error) {
	var out []json.RawMessage
	pageToken := ""
	for {
		q := url.Values{}
		for k, vs := range baseQuery {
			q[k] = append([]string(nil), vs...)
		}
		if pageToken != "" {
			q.Set("page_token", pageToken)
		}

		var page struct {
			Records       []json.RawMessage `json:"records"`
			NextPageToken string            `json:"next_page_token"`
		}
		if err := c.DoJSON(http.MethodGet, path, q, nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}
