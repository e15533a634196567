// Package bootstrap builds the adapters shared by the service and the CLI
// from a loaded configuration.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/jsamuelsen/quote-sync/internal/adapters/archive"
	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/adapters/clients/acl"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/sqlite"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/yamlfile"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// DefaultProfile is used when APP_ENVIRONMENT is unset.
const DefaultProfile = "local"

// LoadConfig reads an optional .env file, then loads and validates the
// configuration for the profile named by APP_ENVIRONMENT.
func LoadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = DefaultProfile
	}

	cfg, err := config.Load(profile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// NewLogger builds the logger described by cfg.Log, writing to w.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logging.NewWithWriter(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	}, w)
}

// OpenStore opens the storage driver named by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (ports.Store, error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.Path, logger)
		if err != nil {
			return nil, err
		}

		return store, nil
	case config.StoreYAML:
		return yamlfile.New(cfg.Path, logger), nil
	case config.StoreMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// NewRemote builds the posts adapter behind the resilient HTTP client.
func NewRemote(cfg *config.Config, logger *slog.Logger) (*acl.PostsAdapter, error) {
	var limiter *rate.Limiter
	if cfg.Remote.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Remote.RateLimit), max(1, int(cfg.Remote.RateLimit)))
	}

	client, err := clients.New(&clients.Config{
		BaseURL:     cfg.Remote.BaseURL,
		ServiceName: cfg.Remote.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		Limiter:     limiter,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Remote.Name, err)
	}

	return acl.NewPostsAdapter(acl.PostsConfig{
		Client:       client,
		FetchLimit:   cfg.Remote.FetchLimit,
		UploadUserID: cfg.Remote.UploadUserID,
		Logger:       logger,
	}), nil
}

// NewArchiver returns the snapshot archiver, or nil when archiving is off.
func NewArchiver(cfg config.ArchiveConfig, logger *slog.Logger) (*archive.MinioArchiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	return archive.NewMinio(archive.Config{
		Endpoint:  cfg.Endpoint,
		Bucket:    cfg.Bucket,
		Prefix:    cfg.Prefix,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Logger:    logger,
	})
}

// ManualChoice maps the configured standing answer onto a resolver.
func ManualChoice(choice string) domain.ConflictResolver {
	if domain.Resolution(choice) == domain.KeepLocal {
		return domain.Always(domain.KeepLocal)
	}

	return domain.Always(domain.KeepRemote)
}
