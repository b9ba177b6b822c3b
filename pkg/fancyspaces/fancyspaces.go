// Package fancyspaces is the entry point of the FancySpaces Go SDK.
package fancyspaces

import (
	"strings"
	"time"

	"github.com/fancyinnovations/fancyspaces-client/pkg/httpreq"
	"github.com/fancyinnovations/fancyspaces-client/pkg/logger"
	"github.com/fancyinnovations/fancyspaces-client/pkg/versions"
	"github.com/prometheus/client_golang/prometheus"
)

// Options configures a Client. The zero value talks to the hosted API
// anonymously through the process-wide transport.
type Options struct {
	BaseURL string
	// APIKey is sent verbatim as the Authorization header when not empty.
	APIKey  string
	Timeout time.Duration

	// DownloadTimeout bounds a whole file transfer of the Downloader.
	DownloadTimeout time.Duration

	// The fields below build a dedicated transport. It still shares the
	// process-wide pause window. Ignored when Transport is set.
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	Registerer        prometheus.Registerer

	Transport *httpreq.Transport
	// Logger receives service, downloader and transport entries. Setting it
	// also builds a dedicated transport unless Transport is set.
	Logger *logger.Logger
}

// Client bundles the services of the SDK.
type Client struct {
	baseURL    string
	transport  *httpreq.Transport
	versions   *versions.Service
	downloader *versions.Downloader
}

// New creates a Client from opts.
func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = versions.DefaultBaseURL
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewLogger("fancyspaces")
	}

	transport := opts.Transport
	if transport == nil {
		if opts.Logger == nil && opts.UserAgent == "" && opts.RequestsPerSecond == 0 && opts.Registerer == nil {
			transport = httpreq.DefaultTransport()
		} else {
			transport = httpreq.NewTransport(httpreq.TransportConfig{
				UserAgent:         opts.UserAgent,
				RequestsPerSecond: opts.RequestsPerSecond,
				Burst:             opts.Burst,
				Registerer:        opts.Registerer,
				Logger:            log,
				Pause:             httpreq.DefaultTransport().Pause(),
			})
		}
	}

	return &Client{
		baseURL:   baseURL,
		transport: transport,
		versions: versions.NewService(versions.Config{
			BaseURL:   baseURL,
			APIKey:    opts.APIKey,
			Timeout:   opts.Timeout,
			Transport: transport,
			Logger:    log,
		}),
		downloader: versions.NewDownloader(versions.DownloaderConfig{
			BaseURL:   baseURL,
			APIKey:    opts.APIKey,
			Timeout:   opts.DownloadTimeout,
			Transport: transport,
			Logger:    log,
		}),
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Transport() *httpreq.Transport { return c.transport }

// Versions returns the read-only versions API.
func (c *Client) Versions() *versions.Service { return c.versions }

// Downloader returns the file downloader bound to the same transport.
func (c *Client) Downloader() *versions.Downloader { return c.downloader }
