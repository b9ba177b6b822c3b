package versions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fancyinnovations/fancyspaces-client/pkg/httpreq"
	"github.com/fancyinnovations/fancyspaces-client/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleVersionJSON = `{
	"space_id": "space1",
	"id": "v-123",
	"name": "1.4.0",
	"platform": "paper",
	"channel": "release",
	"published_at": "2024-05-01T12:30:45Z",
	"changelog": "- fixed things",
	"supported_platform_versions": ["1.20.6", "1.21"],
	"files": [
		{"name": "plugin-1.4.0.jar", "url": "https://fancyspaces.net/api/v1/spaces/space1/versions/v-123/files/plugin-1.4.0.jar", "size": 1024}
	]
}`

var sampleVersion = Version{
	SpaceID:                   "space1",
	ID:                        "v-123",
	Name:                      "1.4.0",
	Platform:                  "paper",
	Channel:                   "release",
	PublishedAt:               "2024-05-01T12:30:45Z",
	Changelog:                 "- fixed things",
	SupportedPlatformVersions: []string{"1.20.6", "1.21"},
	Files: []VersionFile{
		{
			Name: "plugin-1.4.0.jar",
			URL:  "https://fancyspaces.net/api/v1/spaces/space1/versions/v-123/files/plugin-1.4.0.jar",
			Size: 1024,
		},
	},
}

// fakeAPI records every request it serves and answers from a gorilla/mux router.
type fakeAPI struct {
	mu       sync.Mutex
	requests []*http.Request

	status int
	body   string
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Clone(context.Background()))
}

func (f *fakeAPI) last(t *testing.T) *http.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests, "no request reached the fake API")
	return f.requests[len(f.requests)-1]
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeAPI) router() *mux.Router {
	r := mux.NewRouter()
	respond := func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
	}
	r.HandleFunc("/spaces/{space_id}/versions", respond).Methods(http.MethodGet)
	r.HandleFunc("/spaces/{space_id}/versions/latest", respond).Methods(http.MethodGet)
	r.HandleFunc("/spaces/{space_id}/versions/{version_id}", respond).Methods(http.MethodGet)
	r.HandleFunc("/spaces/{space_id}/versions/{version_id}/downloads", respond).Methods(http.MethodGet)
	return r
}

func newTestService(t *testing.T, api *fakeAPI, apiKey string) (*Service, *logtest.Hook, *httpreq.Transport) {
	t.Helper()
	srv := httptest.NewServer(api.router())
	t.Cleanup(srv.Close)

	l, hook := logtest.NewNullLogger()
	tr := httpreq.NewTransport(httpreq.TransportConfig{
		Logger:     logger.Wrap(l, "httpreq"),
		Registerer: prometheus.NewRegistry(),
	})
	svc := NewService(Config{
		BaseURL:   srv.URL,
		APIKey:    apiKey,
		Transport: tr,
		Logger:    logger.Wrap(l, "versions"),
	})
	return svc, hook, tr
}

func TestService_GetVersionsQuery(t *testing.T) {
	tests := []struct {
		name      string
		platform  string
		channel   string
		wantQuery string
	}{
		{"platform and channel", "windows", "beta", "platform=windows&channel=beta"},
		{"channel only", "", "beta", "channel=beta"},
		{"platform only", "windows", "", "platform=windows"},
		{"no filters", "", "", ""},
		{"escaped values", "hytale plugin", "a&b", "platform=hytale+plugin&channel=a%26b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{status: http.StatusOK, body: "[" + sampleVersionJSON + "]"}
			svc, hook, _ := newTestService(t, api, "")

			got, ok := svc.GetVersions(context.Background(), "abc", tt.platform, tt.channel)
			require.True(t, ok)
			require.Len(t, got, 1)
			assert.Equal(t, sampleVersion, got[0])

			req := api.last(t)
			assert.Equal(t, "/spaces/abc/versions", req.URL.Path)
			assert.Equal(t, tt.wantQuery, req.URL.RawQuery)
			assert.Empty(t, hook.AllEntries())
		})
	}
}

func TestService_Headers(t *testing.T) {
	t.Run("with api key", func(t *testing.T) {
		api := &fakeAPI{status: http.StatusOK, body: sampleVersionJSON}
		svc, _, _ := newTestService(t, api, "secret-key")

		_, ok := svc.GetVersion(context.Background(), "space1", "v-123")
		require.True(t, ok)

		req := api.last(t)
		assert.Equal(t, "secret-key", req.Header.Get("Authorization"))
		assert.Equal(t, "application/json", req.Header.Get("Accept"))
		assert.Equal(t, httpreq.DefaultUserAgent, req.Header.Get("User-Agent"))
	})

	t.Run("without api key", func(t *testing.T) {
		api := &fakeAPI{status: http.StatusOK, body: sampleVersionJSON}
		svc, _, _ := newTestService(t, api, "")

		_, ok := svc.GetVersion(context.Background(), "space1", "v-123")
		require.True(t, ok)

		_, present := api.last(t).Header["Authorization"]
		assert.False(t, present)
	})
}

func TestService_GetVersion(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: sampleVersionJSON}
	svc, _, _ := newTestService(t, api, "")

	got, ok := svc.GetVersion(context.Background(), "space1", "v-123")
	require.True(t, ok)
	require.NotNil(t, got)
	assert.Equal(t, sampleVersion, *got)
	assert.Equal(t, "/spaces/space1/versions/v-123", api.last(t).URL.Path)
}

func TestService_GetVersionNotFound(t *testing.T) {
	api := &fakeAPI{status: http.StatusNotFound, body: `{"error":"version not found"}`}
	svc, hook, _ := newTestService(t, api, "")

	got, ok := svc.GetVersion(context.Background(), "space1", "missing")

	assert.False(t, ok)
	assert.Nil(t, got)

	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, logrus.ErrorLevel, entries[0].Level)
	assert.Equal(t, http.StatusNotFound, entries[0].Data["status_code"])
	assert.Equal(t, `{"error":"version not found"}`, entries[0].Data["response_body"])
	assert.Equal(t, "versions", entries[0].Data["module"])
}

func TestService_GetLatestVersion(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: sampleVersionJSON}
	svc, hook, _ := newTestService(t, api, "")

	got, ok := svc.Latest(context.Background(), "space1")
	require.True(t, ok)
	assert.Equal(t, sampleVersion, *got)

	req := api.last(t)
	assert.Equal(t, "/spaces/space1/versions/latest", req.URL.Path)
	assert.Empty(t, req.URL.RawQuery)
	assert.Empty(t, hook.AllEntries())

	want, err := json.Marshal(sampleVersion)
	require.NoError(t, err)
	have, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(have))
}

func TestService_GetLatestVersionFilters(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: sampleVersionJSON}
	svc, _, _ := newTestService(t, api, "")

	_, ok := svc.GetLatestVersion(context.Background(), "space1", PlatformPaper, ChannelBeta)
	require.True(t, ok)

	req := api.last(t)
	assert.Equal(t, "/spaces/space1/versions/latest", req.URL.Path)
	assert.Equal(t, "platform=paper&channel=beta", req.URL.RawQuery)
}

func TestService_EmptyListIsNotNil(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: `[]`}
	svc, _, _ := newTestService(t, api, "")

	got, ok := svc.ListVersions(context.Background(), "space1")
	require.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestService_MalformedJSON(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: `{"id": `}
	svc, hook, _ := newTestService(t, api, "")

	got, ok := svc.GetVersion(context.Background(), "space1", "v-123")

	assert.False(t, ok)
	assert.Nil(t, got)
	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "decode", entries[0].Data["error_kind"])
	assert.NotNil(t, entries[0].Data["error"])
}

func TestService_NullBody(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: " null\n"}
	svc, hook, _ := newTestService(t, api, "")
	ctx := context.Background()

	t.Run("version", func(t *testing.T) {
		hook.Reset()
		got, ok := svc.GetVersion(ctx, "space1", "v-123")
		assert.False(t, ok)
		assert.Nil(t, got)
		entries := hook.AllEntries()
		require.Len(t, entries, 1)
		assert.Equal(t, "decode", entries[0].Data["error_kind"])
		assert.ErrorIs(t, entries[0].Data["error"].(error), ErrNullBody)
	})

	t.Run("latest", func(t *testing.T) {
		hook.Reset()
		got, ok := svc.Latest(ctx, "space1")
		assert.False(t, ok)
		assert.Nil(t, got)
		require.Len(t, hook.AllEntries(), 1)
		assert.Equal(t, "decode", hook.LastEntry().Data["error_kind"])
	})

	t.Run("list", func(t *testing.T) {
		hook.Reset()
		got, ok := svc.GetVersions(ctx, "space1", "", "")
		assert.False(t, ok)
		assert.Nil(t, got)
		require.Len(t, hook.AllEntries(), 1)
	})

	t.Run("downloads", func(t *testing.T) {
		hook.Reset()
		_, ok := svc.GetDownloadCount(ctx, "space1", "v-123")
		assert.False(t, ok)
		require.Len(t, hook.AllEntries(), 1)
	})
}

func TestService_TransportFailure(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: sampleVersionJSON}
	l, hook := logtest.NewNullLogger()
	tr := httpreq.NewTransport(httpreq.TransportConfig{Logger: logger.Wrap(l, "httpreq")})

	srv := httptest.NewServer(api.router())
	baseURL := srv.URL
	srv.Close()

	svc := NewService(Config{BaseURL: baseURL, Transport: tr, Logger: logger.Wrap(l, "versions")})

	got, ok := svc.GetVersions(context.Background(), "space1", "", "")

	assert.False(t, ok)
	assert.Nil(t, got)
	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "transport", entries[0].Data["error_kind"])
}

func TestService_PausedTransport(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: sampleVersionJSON}
	svc, hook, tr := newTestService(t, api, "")
	for i := 0; i < httpreq.TimeoutThreshold; i++ {
		tr.Pause().RecordTimeout()
	}
	hook.Reset()

	got, ok := svc.GetVersion(context.Background(), "space1", "v-123")

	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Equal(t, 0, api.count())
	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "paused", entries[0].Data["error_kind"])
}

func TestService_GetDownloadCount(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: `{"downloads": 42}`}
	svc, _, _ := newTestService(t, api, "")

	got, ok := svc.GetDownloadCount(context.Background(), "space1", "v-123")
	require.True(t, ok)
	assert.Equal(t, uint64(42), got)
	assert.Equal(t, "/spaces/space1/versions/v-123/downloads", api.last(t).URL.Path)
}

func TestService_EmptyIdentifiers(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: sampleVersionJSON}
	svc, hook, _ := newTestService(t, api, "")

	_, ok := svc.GetVersion(context.Background(), "", "v-123")
	assert.False(t, ok)
	_, ok = svc.GetVersions(context.Background(), "", "", "")
	assert.False(t, ok)

	assert.Equal(t, 0, api.count())
	assert.Len(t, hook.AllEntries(), 2)
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(Config{})
	assert.Equal(t, DefaultBaseURL, svc.BaseURL())

	svc = NewService(Config{BaseURL: "https://example.com/api/v1/"})
	assert.Equal(t, "https://example.com/api/v1", svc.BaseURL())
}
