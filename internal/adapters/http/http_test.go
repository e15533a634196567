package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-sync/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quote-sync/internal/adapters/notify"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/mocks"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

type routerOptions struct {
	auth      *config.AuthConfig
	rateLimit *config.RateLimitConfig
	maxBody   int64
}

func newTestServer(t *testing.T, opts routerOptions) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	maxBody := opts.maxBody
	if maxBody == 0 {
		maxBody = 1 << 20
	}

	srv := New(&config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           8080,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		IdleTimeout:    time.Second,
		MaxRequestSize: maxBody,
	}, logger)
	gin.SetMode(gin.TestMode)

	repo := memory.NewWithQuotes(domain.Quote{
		ID: "loc-1", Text: "Begin doing.", Category: "Motivation",
		UpdatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), Source: domain.SourceLocal,
	})
	store := app.NewRecordStore(app.RecordStoreConfig{Repository: repo, Logger: logger})
	store.Load(context.Background())

	feed := notify.NewFeed(10, time.Hour)

	quotes := app.NewQuoteService(app.QuoteServiceConfig{
		Store:       store,
		Preferences: repo,
		Notifier:    feed,
		Logger:      logger,
	})
	syncer := app.NewSyncService(app.SyncServiceConfig{
		Store:    store,
		Remote:   mocks.NewMockRemoteQuoteSource(t),
		Notifier: feed,
		Logger:   logger,
	})

	registry := ports.NewHealthRegistry()
	require.NoError(t, registry.Register(repo))

	SetupRouter(srv.Engine(), RouterConfig{
		Logger:        logger,
		ServiceName:   "quote-sync-test",
		Auth:          opts.auth,
		RateLimit:     opts.rateLimit,
		Health:        handlers.NewHealthHandler(registry, handlers.NewBuildInfo("test", "none", "unknown"), prometheus.NewRegistry()),
		Quotes:        handlers.NewQuoteHandler(quotes),
		Sync:          handlers.NewSyncHandler(syncer, nil),
		Notifications: handlers.NewNotificationHandler(feed),
	})

	return srv
}

func serve(srv *Server, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}

	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	return w
}

func TestServer_Addr(t *testing.T) {
	srv := newTestServer(t, routerOptions{})
	assert.Equal(t, "127.0.0.1:8080", srv.Addr())
}

func TestServer_ListenAndServe(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(&config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		IdleTimeout:    time.Second,
		MaxRequestSize: 1 << 10,
	}, logger)
	srv.Engine().GET("/-/live", func(c *gin.Context) { c.Status(http.StatusOK) })

	require.NoError(t, srv.Listen())
	require.NotEqual(t, "127.0.0.1:0", srv.Addr())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()

	resp, err := http.Get("http://" + srv.Addr() + "/-/live")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-done)
}

func TestRouter_Routes(t *testing.T) {
	srv := newTestServer(t, routerOptions{})

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/-/live", http.StatusOK},
		{http.MethodGet, "/-/ready", http.StatusOK},
		{http.MethodGet, "/-/build", http.StatusOK},
		{http.MethodGet, "/-/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/quotes", http.StatusOK},
		{http.MethodGet, "/api/v1/quotes/loc-1", http.StatusOK},
		{http.MethodGet, "/api/v1/quotes/random", http.StatusOK},
		{http.MethodGet, "/api/v1/quotes/export", http.StatusOK},
		{http.MethodGet, "/api/v1/categories", http.StatusOK},
		{http.MethodGet, "/api/v1/preferences/category", http.StatusOK},
		{http.MethodGet, "/api/v1/sync/status", http.StatusOK},
		{http.MethodGet, "/api/v1/notifications", http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, serve(srv, tt.method, tt.path, "", nil).Code)
		})
	}
}

func TestRouter_EchoesRequestIDs(t *testing.T) {
	srv := newTestServer(t, routerOptions{})

	w := serve(srv, http.MethodGet, "/api/v1/quotes", "", http.Header{middleware.HeaderRequestID: {"req-42"}})

	assert.Equal(t, "req-42", w.Header().Get(middleware.HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderCorrelationID))
}

func TestRouter_WriteRoutesRequireScope(t *testing.T) {
	srv := newTestServer(t, routerOptions{auth: &config.AuthConfig{
		Enabled:       true,
		SubjectHeader: "X-User-ID",
		ScopesHeader:  "X-User-Scopes",
		WriteScope:    "quotes:write",
	}})

	body := `{"text":"Keep going.","category":"Motivation"}`

	assert.Equal(t, http.StatusUnauthorized, serve(srv, http.MethodPost, "/api/v1/quotes", body, nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(srv, http.MethodPost, "/api/v1/quotes", body,
		http.Header{"X-User-Id": {"alice"}}).Code)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/api/v1/quotes", "", nil).Code, "reads stay open")

	w := serve(srv, http.MethodPost, "/api/v1/quotes", body, http.Header{
		"X-User-Id":     {"alice"},
		"X-User-Scopes": {"quotes:write"},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	srv := newTestServer(t, routerOptions{rateLimit: &config.RateLimitConfig{Enabled: true, RPS: 0.1, Burst: 2}})

	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/api/v1/quotes", "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/api/v1/quotes", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(srv, http.MethodGet, "/api/v1/quotes", "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/-/live", "", nil).Code)
}

func TestRouter_MaxRequestSize(t *testing.T) {
	srv := newTestServer(t, routerOptions{maxBody: 16})

	w := serve(srv, http.MethodPost, "/api/v1/quotes/import", `[{"text":"far too long for the limit"}]`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_NotificationsFollowUseCases(t *testing.T) {
	srv := newTestServer(t, routerOptions{})

	w := serve(srv, http.MethodPost, "/api/v1/quotes", `{"text":"Keep going.","category":"Motivation"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(srv, http.MethodPut, "/api/v1/sync/policy", `{"policy":"manual"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(srv, http.MethodGet, "/api/v1/notifications", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Notifications []struct {
			Level   string `json:"level"`
			Message string `json:"message"`
		} `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 2)

	assert.Equal(t, "success", resp.Notifications[0].Level)
	assert.Equal(t, "Quote added locally. Will sync to server.", resp.Notifications[0].Message)
	assert.Equal(t, "Manual conflict resolve enabled.", resp.Notifications[1].Message)
}
