package versions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fancyinnovations/fancyspaces-client/pkg/httpreq"
	"github.com/fancyinnovations/fancyspaces-client/pkg/logger"
)

// DefaultBaseURL is the hosted API including its version prefix.
const DefaultBaseURL = "https://fancyspaces.net/api/v1"

// Config configures a Service. Zero values fall back to defaults.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	Transport *httpreq.Transport
	Logger    *logger.Logger
}

// Service reads versions of spaces from the API.
//
// Service never returns errors. Every failure (transport error, timeout,
// paused transport, non-200 status, malformed or null JSON) is logged as a single
// error entry carrying the error detail and reported to the caller only as
// ok == false. Callers that need the cause must read the logs.
type Service struct {
	baseURL   string
	apiKey    string
	timeout   time.Duration
	transport *httpreq.Transport
	logger    *logger.Logger
}

// NewService creates a Service from cfg.
func NewService(cfg Config) *Service {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = httpreq.DefaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = httpreq.DefaultTransport()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewLogger("versions")
	}

	return &Service{
		baseURL:   baseURL,
		apiKey:    cfg.APIKey,
		timeout:   timeout,
		transport: transport,
		logger:    log,
	}
}

// BaseURL returns the API base the service sends requests to.
func (s *Service) BaseURL() string {
	return s.baseURL
}

// GetVersions lists the versions of a space, optionally filtered by platform
// and channel. Empty filters are omitted from the query.
func (s *Service) GetVersions(ctx context.Context, spaceID, platform, channel string) ([]Version, bool) {
	fields := logger.Fields{"space_id": spaceID, "platform": platform, "channel": channel}
	if spaceID == "" {
		s.invalidArgument("Failed to fetch versions", fields, "space id is empty")
		return nil, false
	}

	var out []Version
	endpoint := s.versionsURL(spaceID) + filterQuery(platform, channel)
	if !s.fetch(ctx, "Failed to fetch versions", endpoint, fields, &out) {
		return nil, false
	}
	if out == nil {
		out = []Version{}
	}
	return out, true
}

// ListVersions lists all versions of a space without filters.
func (s *Service) ListVersions(ctx context.Context, spaceID string) ([]Version, bool) {
	return s.GetVersions(ctx, spaceID, "", "")
}

// GetVersion fetches one version by ID or name.
func (s *Service) GetVersion(ctx context.Context, spaceID, versionID string) (*Version, bool) {
	fields := logger.Fields{"space_id": spaceID, "version_id": versionID}
	if spaceID == "" || versionID == "" {
		s.invalidArgument("Failed to fetch version", fields, "space id or version id is empty")
		return nil, false
	}

	var out Version
	endpoint := s.versionsURL(spaceID) + "/" + url.PathEscape(versionID)
	if !s.fetch(ctx, "Failed to fetch version", endpoint, fields, &out) {
		return nil, false
	}
	return &out, true
}

// GetLatestVersion fetches the newest version matching the optional filters.
func (s *Service) GetLatestVersion(ctx context.Context, spaceID, platform, channel string) (*Version, bool) {
	fields := logger.Fields{"space_id": spaceID, "version_id": "latest", "platform": platform, "channel": channel}
	if spaceID == "" {
		s.invalidArgument("Failed to fetch latest version", fields, "space id is empty")
		return nil, false
	}

	var out Version
	endpoint := s.versionsURL(spaceID) + "/latest" + filterQuery(platform, channel)
	if !s.fetch(ctx, "Failed to fetch latest version", endpoint, fields, &out) {
		return nil, false
	}
	return &out, true
}

// Latest fetches the newest version of a space regardless of platform and channel.
func (s *Service) Latest(ctx context.Context, spaceID string) (*Version, bool) {
	return s.GetLatestVersion(ctx, spaceID, "", "")
}

type downloadsResp struct {
	Downloads uint64 `json:"downloads"`
}

// GetDownloadCount returns how often a version was downloaded.
func (s *Service) GetDownloadCount(ctx context.Context, spaceID, versionID string) (uint64, bool) {
	fields := logger.Fields{"space_id": spaceID, "version_id": versionID}
	if spaceID == "" || versionID == "" {
		s.invalidArgument("Failed to fetch download count", fields, "space id or version id is empty")
		return 0, false
	}

	var out downloadsResp
	endpoint := s.versionsURL(spaceID) + "/" + url.PathEscape(versionID) + "/downloads"
	if !s.fetch(ctx, "Failed to fetch download count", endpoint, fields, &out) {
		return 0, false
	}
	return out.Downloads, true
}

func (s *Service) versionsURL(spaceID string) string {
	return s.baseURL + "/spaces/" + url.PathEscape(spaceID) + "/versions"
}

// filterQuery keeps platform before channel, which url.Values would not.
func filterQuery(platform, channel string) string {
	var params []string
	if platform != "" {
		params = append(params, "platform="+url.QueryEscape(platform))
	}
	if channel != "" {
		params = append(params, "channel="+url.QueryEscape(channel))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + strings.Join(params, "&")
}

// fetch sends a GET to endpoint and decodes a 200 response into out. It logs
// exactly one error entry on failure.
func (s *Service) fetch(ctx context.Context, msg, endpoint string, fields logger.Fields, out any) bool {
	req := httpreq.New(endpoint).
		WithTimeout(s.timeout).
		WithHeader("Accept", "application/json")
	if s.apiKey != "" {
		req = req.WithHeader("Authorization", s.apiKey)
	}

	fields["url"] = endpoint

	resp, err := req.Send(ctx, s.transport)
	if err != nil {
		fields["error_kind"] = errorKind(err)
		s.logger.WithFields(fields).WithError(err).Error(msg)
		return false
	}

	fields["request_id"] = resp.RequestID

	if resp.StatusCode != http.StatusOK {
		fields["status_code"] = resp.StatusCode
		fields["response_body"] = resp.Text()
		s.logger.WithFields(fields).Error(msg)
		return false
	}

	err = json.Unmarshal(resp.Body, out)
	if err == nil && bytes.Equal(bytes.TrimSpace(resp.Body), []byte("null")) {
		err = ErrNullBody
	}
	if err != nil {
		decodeErr := &DecodeError{URL: endpoint, Err: err}
		fields["error_kind"] = errorKind(decodeErr)
		s.logger.WithFields(fields).WithError(decodeErr).Error(msg)
		return false
	}

	return true
}

func (s *Service) invalidArgument(msg string, fields logger.Fields, reason string) {
	fields["error_kind"] = "invalid_argument"
	s.logger.WithFields(fields).WithField("error", reason).Error(msg)
}

func errorKind(err error) string {
	var (
		timeoutErr   *httpreq.TimeoutError
		transportErr *httpreq.TransportError
		decodeErr    *DecodeError
	)
	switch {
	case errors.As(err, &timeoutErr):
		if timeoutErr.Paused {
			return "paused"
		}
		return "timeout"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &transportErr):
		return "transport"
	default:
		return "unknown"
	}
}
