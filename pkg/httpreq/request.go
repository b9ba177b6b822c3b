package httpreq

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout is applied to every request that does not set its own.
const DefaultTimeout = 5 * time.Second

// BodyMode selects how the response body is handed back.
type BodyMode int

const (
	// BodyText buffers the whole body into Response.Body.
	BodyText BodyMode = iota
	// BodyDiscard drains and drops the body.
	BodyDiscard
	// BodyStream leaves Response.Stream open; the caller must close it.
	BodyStream
)

func (m BodyMode) String() string {
	switch m {
	case BodyText:
		return "text"
	case BodyDiscard:
		return "discard"
	case BodyStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Request describes one outbound call. It is an immutable value: every With
// method returns a modified copy and leaves the receiver untouched, so a
// Request can be shared and reused safely.
type Request struct {
	url      string
	method   string
	body     any
	headers  map[string]string
	timeout  time.Duration
	bodyMode BodyMode
}

// New returns a GET request for url with the default timeout and text body mode.
func New(url string) Request {
	return Request{
		url:      url,
		method:   http.MethodGet,
		timeout:  DefaultTimeout,
		bodyMode: BodyText,
	}
}

func (r Request) URL() string            { return r.url }
func (r Request) Method() string         { return r.method }
func (r Request) Body() any              { return r.body }
func (r Request) Timeout() time.Duration { return r.timeout }
func (r Request) BodyMode() BodyMode     { return r.bodyMode }

// Headers returns a copy of the caller supplied headers.
func (r Request) Headers() map[string]string {
	return maps.Clone(r.headers)
}

func (r Request) WithMethod(method string) Request {
	r.method = strings.ToUpper(method)
	return r
}

// WithBody sets the value JSON encoded for non-GET requests.
func (r Request) WithBody(body any) Request {
	r.body = body
	return r
}

// WithHeaders replaces all caller supplied headers.
func (r Request) WithHeaders(headers map[string]string) Request {
	r.headers = maps.Clone(headers)
	return r
}

// WithHeader adds or overwrites a single header.
func (r Request) WithHeader(key, value string) Request {
	h := make(map[string]string, len(r.headers)+1)
	maps.Copy(h, r.headers)
	h[key] = value
	r.headers = h
	return r
}

func (r Request) WithTimeout(timeout time.Duration) Request {
	r.timeout = timeout
	return r
}

func (r Request) WithBodyMode(mode BodyMode) Request {
	r.bodyMode = mode
	return r
}

// Send issues the request through t.
func (r Request) Send(ctx context.Context, t *Transport) (*Response, error) {
	return t.Send(ctx, r)
}

// encodeBody returns nil when no body must be sent: GET requests, nil bodies
// and bodies that encode to nothing.
func (r Request) encodeBody() (io.Reader, error) {
	if r.method == http.MethodGet || r.body == nil {
		return nil, nil
	}

	data, err := json.Marshal(r.body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	return bytes.NewReader(data), nil
}

// Response is the result of a sent request.
type Response struct {
	StatusCode int
	Header     http.Header
	// Body holds the full payload in BodyText mode.
	Body []byte
	// Stream is set in BodyStream mode only.
	Stream io.ReadCloser
	// RequestID correlates the request with its log entries.
	RequestID string
}

// Text returns the buffered body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// cancelOnClose releases the per-request timeout once a streamed body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
