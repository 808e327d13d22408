package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/pilgi/version"
)

// Request describes one call to a sidecar.
type Request struct {
	Method string
	// Path is joined onto the client's base URL.
	Path string
	// JSON, when non-nil, is encoded as the request body.
	JSON any
	// Form, when non-nil, is streamed as a multipart body. It wins over JSON.
	Form *Form
	// Timeout overrides the client timeout. Transcribing long audio needs
	// far more than a health check.
	Timeout time.Duration
}

// Response is a completed 2xx response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client sends requests to one sidecar.
type Client struct {
	base    string
	timeout time.Duration
	headers map[string]string
	http    *http.Client
}

// New creates a client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		headers: cfg.Headers,
		http:    &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
	}, nil
}

// Do sends req and reads the whole response. Non-2xx statuses return an
// *Error carrying the body.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, fmt.Errorf("read response: %w", err))
	}
	if e := statusError(resp.StatusCode, body); e != nil {
		return nil, e
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// DoJSON sends req and decodes a JSON response into out.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &Error{Kind: KindDecode, Status: resp.Status, Body: resp.Body, Err: err}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Form != nil:
		rc, ct := req.Form.open()
		body, contentType = rc, ct
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, &Error{Kind: KindRejected, Err: fmt.Errorf("encode body: %w", err)}
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.base+"/"+strings.TrimLeft(req.Path, "/"), body)
	if err != nil {
		if rc, ok := body.(io.Closer); ok {
			_ = rc.Close()
		}
		return nil, &Error{Kind: KindRejected, Err: err}
	}
	httpReq.Header.Set("User-Agent", version.UserAgent())
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	return httpReq, nil
}

// transportError classifies a failure that produced no status code.
func transportError(ctx context.Context, err error) *Error {
	var netErr net.Error
	if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindUnreachable, Err: err}
}
