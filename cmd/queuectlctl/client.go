package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// client is a thin wrapper over net/http that does nothing queuectl's
// control API contract doesn't already specify: build one request,
// decode one JSON response, report the status code back to the caller
// so it can pick an exit code: exit codes mirror HTTP status families.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}
}

// do sends method/path with an optional JSON body and decodes the
// response body into out (if out is non-nil). It returns the HTTP
// status code even on a non-2xx response, so callers can both print the
// server's error payload and choose an exit code.
func (c *client) do(method, path string, body any, out any) (int, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, respBody, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, respBody, nil
}

// exitCodeFor mirrors an HTTP status onto a process exit code: 0 for
// any 2xx response, 1 otherwise. queuectl's control API never returns
// 1xx/3xx, so this is the whole mapping needed.
func exitCodeFor(status int) int {
	if status >= 200 && status < 300 {
		return 0
	}
	return 1
}
