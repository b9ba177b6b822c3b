package versions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/fancyinnovations/fancyspaces-client/internal/fsutil"
	"github.com/fancyinnovations/fancyspaces-client/pkg/httpreq"
	"github.com/fancyinnovations/fancyspaces-client/pkg/logger"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const (
	// DefaultDownloadTimeout bounds a whole file transfer.
	DefaultDownloadTimeout = 5 * time.Minute

	downloadBreakerTimeout  = 60 * time.Second
	downloadBreakerFailures = 3
)

// DownloaderConfig configures a Downloader.
type DownloaderConfig struct {
	// BaseURL decides which file URLs receive the API key.
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	Transport *httpreq.Transport
	Logger    *logger.Logger
}

// Downloader fetches version files to disk. Unlike Service it returns errors.
type Downloader struct {
	baseURL   string
	apiKey    string
	timeout   time.Duration
	transport *httpreq.Transport
	logger    *logger.Logger
	breaker   *gobreaker.CircuitBreaker
}

// NewDownloader creates a Downloader from cfg.
func NewDownloader(cfg DownloaderConfig) *Downloader {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = httpreq.DefaultTransport()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewLogger("version-downloader")
	}

	d := &Downloader{
		baseURL:   baseURL,
		apiKey:    cfg.APIKey,
		timeout:   timeout,
		transport: transport,
		logger:    log,
	}

	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "version-downloads",
		Timeout: downloadBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= downloadBreakerFailures
		},
		IsSuccessful: func(err error) bool {
			// cancellation by the caller says nothing about the remote side
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("Circuit breaker %s state changed from %v to %v", name, from, to)
		},
	})

	return d
}

// State returns the current breaker state.
func (d *Downloader) State() gobreaker.State {
	return d.breaker.State()
}

// Download writes file to destPath and returns the number of bytes written.
// The payload is staged next to destPath and only renamed into place once
// it is complete and its size matches file.Size (when the size is known).
func (d *Downloader) Download(ctx context.Context, file VersionFile, destPath string) (int64, error) {
	if file.URL == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingFileURL, file.Name)
	}

	log := d.logger.WithFields(logger.Fields{
		"file": file.Name,
		"url":  file.URL,
		"dest": destPath,
	})
	log.Info("Starting file download")

	written, err := d.breaker.Execute(func() (interface{}, error) {
		return d.download(ctx, log, file, destPath)
	})
	if err != nil {
		log.WithError(err).Error("File download failed")
		return 0, err
	}

	log.WithField("bytes", written).Info("Successfully downloaded file")
	return written.(int64), nil
}

// DownloadTo writes file into dir under its own base name and returns the path.
func (d *Downloader) DownloadTo(ctx context.Context, file VersionFile, dir string) (string, error) {
	name := filepath.Base(file.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("invalid file name %q", file.Name)
	}
	dest := filepath.Join(dir, name)
	if _, err := d.Download(ctx, file, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (d *Downloader) download(ctx context.Context, log *logrus.Entry, file VersionFile, destPath string) (int64, error) {
	req := httpreq.New(file.URL).
		WithTimeout(d.timeout).
		WithBodyMode(httpreq.BodyStream)
	if d.apiKey != "" && strings.HasPrefix(file.URL, d.baseURL+"/") {
		req = req.WithHeader("Authorization", d.apiKey)
	}

	resp, err := req.Send(ctx, d.transport)
	if err != nil {
		return 0, err
	}
	defer resp.Stream.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w %d for %s", ErrUnexpectedStatus, resp.StatusCode, file.URL)
	}

	staged, err := fsutil.Stage(log, destPath)
	if err != nil {
		return 0, err
	}
	defer staged.Discard()

	written, err := fsutil.CopyWithContext(ctx, staged, resp.Stream, file.Size)
	if errors.Is(err, fsutil.ErrLimitExceeded) {
		return written, fmt.Errorf("%w: expected %d bytes, got more", ErrSizeMismatch, file.Size)
	}
	if err != nil {
		return written, fmt.Errorf("failed to save file: %w", err)
	}
	if file.Size > 0 && written != file.Size {
		return written, fmt.Errorf("%w: expected %d bytes, got %d", ErrSizeMismatch, file.Size, written)
	}

	if err := staged.Commit(); err != nil {
		return written, fmt.Errorf("failed to move file to destination: %w", err)
	}

	return written, nil
}
