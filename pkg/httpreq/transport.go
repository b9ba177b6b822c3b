package httpreq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/fancyinnovations/fancyspaces-client/pkg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// DefaultUserAgent identifies the SDK on every request.
const DefaultUserAgent = "FancySpaces Go-SDK"

// TransportConfig configures a Transport. Every field is optional.
type TransportConfig struct {
	// HTTPClient performs the network I/O. Its own Timeout should stay zero;
	// per-request timeouts are applied through the request context.
	HTTPClient *http.Client
	UserAgent  string

	// RequestsPerSecond throttles outbound requests; zero disables throttling.
	RequestsPerSecond float64
	Burst             int

	Registerer prometheus.Registerer
	Logger     *logger.Logger

	// Pause lets several transports share one pause window.
	Pause *PauseState
	// Now overrides the clock of a newly created PauseState.
	Now func() time.Time
}

// Transport is the shared execution context for requests: one HTTP client,
// one pause state, one limiter. Build it once per process and pass it to
// every caller.
type Transport struct {
	client    *http.Client
	userAgent string
	pause     *PauseState
	limiter   *rate.Limiter
	metrics   *Metrics
	logger    *logger.Logger
}

var (
	defaultTransport     *Transport
	defaultTransportOnce sync.Once
)

// DefaultTransport returns the lazily created process-wide Transport.
func DefaultTransport() *Transport {
	defaultTransportOnce.Do(func() {
		defaultTransport = NewTransport(TransportConfig{})
	})
	return defaultTransport
}

// NewTransport creates a Transport from cfg.
func NewTransport(cfg TransportConfig) *Transport {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	pause := cfg.Pause
	if pause == nil {
		pause = NewPauseState(cfg.Now)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewLogger("httpreq")
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Transport{
		client:    client,
		userAgent: userAgent,
		pause:     pause,
		limiter:   limiter,
		metrics:   NewMetrics(cfg.Registerer),
		logger:    log,
	}
}

// Pause exposes the shared timeout counter and pause window.
func (t *Transport) Pause() *PauseState {
	return t.pause
}

// Metrics exposes the collectors updated by this transport.
func (t *Transport) Metrics() *Metrics {
	return t.metrics
}

// Send performs req. It blocks until the response is read (or, in
// BodyStream mode, until headers arrive).
//
// The User-Agent header is set first and caller headers are applied after
// it, so a caller supplied header of the same name wins.
//
// A timeout increments the shared counter and may open a pause window;
// while the window is active Send fails with a paused TimeoutError without
// touching the network. Cancellation of ctx is returned unchanged.
func (t *Transport) Send(ctx context.Context, req Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if t.pause.Active() {
		t.metrics.PausedRejectionsTotal.Inc()
		return nil, &TimeoutError{URL: req.url, Paused: true, Err: ErrPaused}
	}

	u, err := url.Parse(req.url)
	if err == nil && (u.Scheme == "" || u.Host == "") {
		err = fmt.Errorf("missing scheme or host")
	}
	if err != nil {
		return nil, &TransportError{Op: "parse", URL: req.url, Err: err}
	}

	body, err := req.encodeBody()
	if err != nil {
		return nil, &TransportError{Op: "encode", URL: req.url, Err: err}
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqCtx, cancel := ctx, context.CancelFunc(func() {})
	if req.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, req.timeout)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, req.method, u.String(), body)
	if err != nil {
		cancel()
		return nil, &TransportError{Op: "build", URL: req.url, Err: err}
	}

	httpReq.Header.Set("User-Agent", t.userAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	requestID := uuid.NewString()
	log := t.logger.WithFields(logger.Fields{
		"request_id": requestID,
		"method":     req.method,
		"url":        req.url,
	})
	log.Debug("Sending request")

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, t.classify(ctx, req, requestID, err)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		RequestID:  requestID,
	}

	switch req.bodyMode {
	case BodyStream:
		out.Stream = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	case BodyDiscard:
		_, err = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		cancel()
	default:
		out.Body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
	}
	if err != nil {
		return nil, t.classify(ctx, req, requestID, err)
	}

	t.metrics.RequestsTotal.WithLabelValues(req.method, strconv.Itoa(resp.StatusCode)).Inc()
	log.WithFields(logger.Fields{
		"status_code": resp.StatusCode,
		"duration":    time.Since(start).String(),
	}).Debug("Request completed")

	return out, nil
}

// classify turns a client error into the returned error and updates the
// shared timeout state.
func (t *Transport) classify(ctx context.Context, req Request, requestID string, err error) error {
	if ctx.Err() != nil {
		return err
	}

	if !isTimeout(err) {
		t.metrics.TransportErrorsTotal.Inc()
		return &TransportError{Op: "send", URL: req.url, Err: err}
	}

	t.metrics.TimeoutsTotal.Inc()
	if t.pause.RecordTimeout() {
		t.metrics.PauseActivationsTotal.Inc()
		t.logger.WithFields(logger.Fields{
			"request_id":  requestID,
			"url":         req.url,
			"threshold":   TimeoutThreshold,
			"pause_until": t.pause.Until().Format(time.RFC3339),
		}).Warn("Repeated request timeouts, pausing outbound requests")
	}
	return &TimeoutError{URL: req.url, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
