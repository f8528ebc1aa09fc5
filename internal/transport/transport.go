// Package transport is the outbound boundary the retry queue replays requests
// through. Failures surface as a tagged error value, never as a panic, so the
// retry decision stays a pure function of the result.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every outbound request.
const DefaultTimeout = 10 * time.Second

// Response is the successful result of a replayed request.
type Response struct {
	StatusCode int
	Body       string
}

// Error is a transport-level failure: timeout, connection error, or an
// unbuildable request.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Sender sends a request described by a replay payload.
type Sender interface {
	Send(ctx context.Context, method, url string, headers map[string]string, body any) (*Response, error)
}

// HTTPSender implements Sender over net/http with a fixed timeout.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender creates a sender with the given timeout (DefaultTimeout when 0).
func NewHTTPSender(timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSender{client: &http.Client{Timeout: timeout}}
}

// Send replays one request. Structured bodies are sent as JSON; strings and
// byte slices go out as raw content.
func (s *HTTPSender) Send(
	ctx context.Context,
	method, url string,
	headers map[string]string,
	body any,
) (*Response, error) {
	var reader io.Reader
	contentType := ""

	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, &Error{Op: "encode", Err: err}
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &Error{Op: "build", Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &Error{Op: "send", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Op: "read", Err: err}
	}

	return &Response{StatusCode: resp.StatusCode, Body: string(data)}, nil
}
