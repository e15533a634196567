//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	apphttp "github.com/jsamuelsen/quote-sync/internal/adapters/http"
	"github.com/jsamuelsen/quote-sync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-sync/internal/adapters/notify"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/bootstrap"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/platform/telemetry"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// fakePosts is an in-memory JSONPlaceholder-style posts API.
type fakePosts struct {
	mu      sync.Mutex
	posts   []map[string]any
	uploads []map[string]any
	down    bool
}

func (f *fakePosts) serve(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.posts = f.posts[:0]
	for i := 1; i <= count; i++ {
		f.posts = append(f.posts, map[string]any{
			"id":     i,
			"userId": (i-1)%3 + 1,
			"title":  "title " + strconv.Itoa(i),
			"body":   "Post body " + strconv.Itoa(i),
		})
	}
}

func (f *fakePosts) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakePosts) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.uploads)
}

func (f *fakePosts) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		http.Error(w, `{"message":"maintenance"}`, http.StatusServiceUnavailable)
		return
	}

	if r.URL.Path != "/posts" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		limit := len(f.posts)
		if n, err := strconv.Atoi(r.URL.Query().Get("_limit")); err == nil && n < limit {
			limit = n
		}

		_ = json.NewEncoder(w).Encode(f.posts[:limit])

	case http.MethodPost:
		var post map[string]any
		if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
			http.Error(w, `{"message":"bad json"}`, http.StatusBadRequest)
			return
		}

		f.uploads = append(f.uploads, post)
		post["id"] = 100 + len(f.uploads)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(post)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// stack is the service wired in-process over a real store in dir.
type stack struct {
	engine *gin.Engine
	sync   *app.SyncService
	quotes *app.QuoteService
	store  ports.Store
}

func storePath(dir, driver string) string {
	switch driver {
	case config.StoreYAML:
		return filepath.Join(dir, "quotes.yaml")
	default:
		return filepath.Join(dir, "quotes.db")
	}
}

func startStack(dir, driver, postsURL string) (*stack, error) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   5 * time.Second,
			IdleTimeout:    5 * time.Second,
			MaxRequestSize: 1 << 20,
		},
		Client: config.ClientConfig{
			Timeout: 2 * time.Second,
			Retry: config.RetryConfig{
				MaxAttempts:     1,
				InitialInterval: 10 * time.Millisecond,
				MaxInterval:     50 * time.Millisecond,
				Multiplier:      2,
			},
			CircuitBreaker: config.CircuitBreakerConfig{
				MaxFailures:   5,
				Timeout:       time.Second,
				HalfOpenLimit: 1,
			},
		},
		Remote: config.RemoteConfig{
			BaseURL:      postsURL,
			Name:         "posts",
			FetchLimit:   15,
			UploadUserID: 1,
		},
		Store: config.StoreConfig{
			Driver:       driver,
			Path:         storePath(dir, driver),
			SeedDefaults: true,
		},
	}

	store, err := bootstrap.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	remote, err := bootstrap.NewRemote(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	registry := ports.NewHealthRegistry()
	for _, c := range []ports.HealthChecker{store.(ports.HealthChecker), remote} {
		if err := registry.Register(c); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	promRegistry := prometheus.NewRegistry()

	metrics, err := telemetry.NewSyncMetrics(promRegistry)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	feed := notify.NewFeed(20, time.Minute)

	records := app.NewRecordStore(app.RecordStoreConfig{
		Repository:   store,
		Logger:       logger,
		SeedDefaults: cfg.Store.SeedDefaults,
	})
	records.Load(ctx)

	quotes := app.NewQuoteService(app.QuoteServiceConfig{
		Store:       records,
		Preferences: store,
		Notifier:    feed,
		Logger:      logger,
	})

	syncer := app.NewSyncService(app.SyncServiceConfig{
		Store:    records,
		Remote:   remote,
		Notifier: feed,
		Metrics:  metrics,
		Logger:   logger,
		Chooser:  bootstrap.ManualChoice("local"),
	})

	srv := apphttp.New(&cfg.Server, logger)
	gin.SetMode(gin.TestMode)

	apphttp.SetupRouter(srv.Engine(), apphttp.RouterConfig{
		Logger:        logger,
		ServiceName:   "quote-sync-integration",
		Health:        handlers.NewHealthHandler(registry, handlers.NewBuildInfo("it", "none", "unknown"), promRegistry),
		Quotes:        handlers.NewQuoteHandler(quotes),
		Sync:          handlers.NewSyncHandler(syncer, nil),
		Notifications: handlers.NewNotificationHandler(feed),
	})

	return &stack{engine: srv.Engine(), sync: syncer, quotes: quotes, store: store}, nil
}

func (s *stack) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	return w
}
