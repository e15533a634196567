package acl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

const (
	postsPath = "/posts"

	// DefaultFetchLimit is how many posts FetchQuotes requests when the
	// config leaves it unset.
	DefaultFetchLimit = 15
)

// PostsConfig configures a PostsAdapter.
type PostsConfig struct {
	Client *clients.Client

	// FetchLimit is sent as the _limit query parameter.
	FetchLimit int

	// UploadUserID is the userId attached to uploaded posts.
	UploadUserID int

	Logger *slog.Logger
}

// PostsAdapter implements ports.RemoteQuoteSource and ports.HealthChecker on
// top of a JSONPlaceholder-style posts API.
type PostsAdapter struct {
	BaseAdapter

	fetchLimit   int
	uploadUserID int
	logger       *slog.Logger
}

// NewPostsAdapter creates the adapter. It panics without a client.
func NewPostsAdapter(cfg PostsConfig) *PostsAdapter {
	if cfg.Client == nil {
		panic("acl: PostsAdapter requires a Client")
	}

	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = DefaultFetchLimit
	}

	if cfg.UploadUserID <= 0 {
		cfg.UploadUserID = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PostsAdapter{
		BaseAdapter:  NewBaseAdapter(cfg.Client, cfg.Client.ServiceName()),
		fetchLimit:   cfg.FetchLimit,
		uploadUserID: cfg.UploadUserID,
		logger:       logger.With(slog.String("component", "acl.PostsAdapter")),
	}
}

// postDTO is the wire shape of a post.
type postDTO struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// newPostDTO is the upload payload. The title carries the category.
type newPostDTO struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	UserID int    `json:"userId"`
}

// FetchQuotes downloads the first FetchLimit posts as server quotes. Posts
// with a non-positive id are skipped. UpdatedAt is left zero for the sync
// cycle to stamp.
func (a *PostsAdapter) FetchQuotes(ctx context.Context) ([]domain.Quote, error) {
	path := fmt.Sprintf("%s?_limit=%d", postsPath, a.fetchLimit)
	logging.Trace(ctx, a.logger, "fetching posts", slog.String("path", path))

	body, err := a.Get(ctx, path, "fetch posts")
	if err != nil {
		return nil, err
	}

	posts, err := DecodeResponse[[]postDTO](body, a.ServiceName()+" posts response")
	if err != nil {
		return nil, err
	}

	quotes, skipped, err := TranslateSlice(*posts, postToQuote, true)
	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		a.logger.WarnContext(ctx, "skipped invalid posts", slog.Int("skipped", skipped))
	}

	a.logger.DebugContext(ctx, "posts fetched", slog.Int("count", len(quotes)))

	return quotes, nil
}

// UploadQuote creates a post from q. Any 2xx response is an acknowledgement.
func (a *PostsAdapter) UploadQuote(ctx context.Context, q domain.Quote) error {
	payload, err := json.Marshal(newPostDTO{
		Title:  q.Category,
		Body:   q.Text,
		UserID: a.uploadUserID,
	})
	if err != nil {
		return fmt.Errorf("encoding post: %w", err)
	}

	logging.Trace(ctx, a.logger, "uploading quote", slog.String("quote_id", q.ID))

	body, err := a.Post(ctx, postsPath, payload, "upload quote "+q.ID)
	if err != nil {
		return err
	}

	return body.Close()
}

// Name implements ports.HealthChecker.
func (a *PostsAdapter) Name() string {
	return a.ServiceName()
}

// Check implements ports.HealthChecker by fetching a single post.
func (a *PostsAdapter) Check(ctx context.Context) error {
	body, err := a.Get(ctx, postsPath+"?_limit=1", "health check")
	if err != nil {
		return err
	}

	return body.Close()
}

// postToQuote maps a post onto a server quote.
func postToQuote(p *postDTO) (domain.Quote, error) {
	if err := ValidatePositive(p.ID, "id"); err != nil {
		return domain.Quote{}, err
	}

	text := strings.TrimSpace(p.Body)
	if text == "" {
		text = "Post #" + strconv.Itoa(p.ID)
	}

	return domain.Quote{
		ID:       domain.RemoteIDPrefix + strconv.Itoa(p.ID),
		Text:     text,
		Category: "Category " + strconv.Itoa(p.UserID),
		Source:   domain.SourceServer,
	}, nil
}
