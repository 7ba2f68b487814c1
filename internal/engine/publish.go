package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/contenthub/hubdispatch/internal/models"
	"github.com/contenthub/hubdispatch/internal/publisher"
	"github.com/contenthub/hubdispatch/internal/store"
)

// DefaultPublishBatchSize caps how many due posts one run picks up.
const DefaultPublishBatchSize = 20

// CaptionGenerator produces a caption for posts scheduled without one.
type CaptionGenerator interface {
	Generate(ctx context.Context, niche, hashtags string) (string, error)
}

// PublishEngine selects due posts and dispatches each to its platforms.
type PublishEngine struct {
	store      store.Store
	publishers publisher.Registry
	captions   CaptionGenerator
	dryRun     bool
	now        func() time.Time
}

// PublishOption configures a PublishEngine.
type PublishOption func(*PublishEngine)

// WithDryRun makes the engine log intended actions without calling any
// platform or writing the store.
func WithDryRun(dryRun bool) PublishOption {
	return func(e *PublishEngine) { e.dryRun = dryRun }
}

// WithCaptionGenerator enables caption generation for caption-less posts.
func WithCaptionGenerator(g CaptionGenerator) PublishOption {
	return func(e *PublishEngine) { e.captions = g }
}

// WithClock overrides the engine's clock (used by tests).
func WithClock(now func() time.Time) PublishOption {
	return func(e *PublishEngine) { e.now = now }
}

// NewPublishEngine creates a publishing engine over the given store and
// adapter registry.
func NewPublishEngine(st store.Store, publishers publisher.Registry, opts ...PublishOption) *PublishEngine {
	e := &PublishEngine{store: st, publishers: publishers, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one publishing pass. Per-post failures are absorbed into the
// counters; only the initial due-post query aborts the run.
func (e *PublishEngine) Run(ctx context.Context) (Counters, error) {
	var c Counters
	now := e.now()
	posts, err := e.store.ListDuePosts(ctx, now, DefaultPublishBatchSize)
	if err != nil {
		return c, fmt.Errorf("selecting due posts: %w", err)
	}
	slog.Info("PublishEngine.Run: due posts selected", "count", len(posts), "dry_run", e.dryRun)

	for _, post := range posts {
		e.dispatch(ctx, post, &c)
	}

	slog.Info("PublishEngine.Run: finished", "published", c.Succeeded, "failed", c.Failed)
	return c, nil
}

// dispatch processes one post. Every error short of it is handled here; the
// post either reaches a terminal status, or stays scheduled for a future run
// when its status could not be written.
func (e *PublishEngine) dispatch(ctx context.Context, post models.Post, c *Counters) {
	if len(post.Platforms) == 0 {
		// Nothing to do is not an error; leave the post untouched.
		slog.Debug("PublishEngine: post has no platforms, skipping", "post", post.ID)
		return
	}
	slog.Info("PublishEngine: dispatching post", "post", post.ID, "platforms", strings.Join(post.Platforms, ","))

	if e.dryRun {
		slog.Info("PublishEngine: dry run, would publish", "post", post.ID, "platforms", strings.Join(post.Platforms, ","))
		c.Succeeded++
		return
	}

	if post.Caption == "" && e.captions != nil {
		caption, err := e.captions.Generate(ctx, post.AvatarNiche, post.Hashtags)
		if err != nil {
			slog.Warn("PublishEngine: caption generation failed, publishing without", "post", post.ID, "error", err)
		} else {
			post.Caption = caption
		}
	}

	var published []models.Publication
	var failures []string
	for _, platform := range post.Platforms {
		pub, ok := e.publishers.Lookup(platform)
		if !ok {
			slog.Warn("PublishEngine: platform not supported", "post", post.ID, "platform", platform)
			failures = append(failures, platform+": not supported")
			continue
		}
		outcome, err := pub.Attempt(ctx, post)
		if err != nil {
			// One platform's failure never aborts the rest of the post.
			slog.Error("PublishEngine: platform attempt failed", "post", post.ID, "platform", platform, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", platform, err))
			continue
		}
		if !outcome.Published {
			slog.Warn("PublishEngine: platform skipped", "post", post.ID, "platform", platform, "reason", outcome.SkipReason)
			failures = append(failures, platform+": "+outcome.SkipReason)
			continue
		}
		published = append(published, models.Publication{
			PostID:      post.ID,
			AvatarID:    post.AvatarID,
			Platform:    platform,
			ExternalID:  outcome.ExternalID,
			URL:         outcome.URL,
			PublishedAt: models.WireTime(e.now()),
		})
	}

	if len(published) > 0 {
		for _, pub := range published {
			if err := e.store.InsertPublication(ctx, pub); err != nil {
				// A store failure means the outcome cannot be recorded; leave
				// the post scheduled so a future run retries it.
				slog.Error("PublishEngine: recording publication failed", "post", post.ID, "platform", pub.Platform, "error", err)
				c.Failed++
				return
			}
		}
		if err := e.store.MarkPost(ctx, post.ID, models.PostStatusPublished, "", e.now().UTC()); err != nil {
			slog.Error("PublishEngine: status write failed", "post", post.ID, "error", err)
			c.Failed++
			return
		}
		c.Succeeded++
		return
	}

	summary := models.TruncateErrorSummary(strings.Join(failures, "; "))
	if err := e.store.MarkPost(ctx, post.ID, models.PostStatusError, summary, e.now().UTC()); err != nil {
		slog.Error("PublishEngine: status write failed", "post", post.ID, "error", err)
	}
	c.Failed++
}
