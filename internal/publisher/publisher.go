// Package publisher contains the platform adapters for the publishing dispatcher.
//
// Each adapter wraps one platform's publish protocol behind a single Attempt
// call. Adapters never touch the record store; recording outcomes is the
// engine's job.
package publisher

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/contenthub/hubdispatch/internal/config"
	"github.com/contenthub/hubdispatch/internal/models"
)

// Timeout tiers for platform calls. Metadata calls finish fast; video byte
// transfers need the long tier.
const (
	// DefaultAttemptTimeout applies to caption/photo publish calls.
	DefaultAttemptTimeout = 30 * time.Second
	// UploadTimeout applies to clients that stream video bytes.
	UploadTimeout = 120 * time.Second
)

// Publisher is the uniform contract the dispatch engine works against.
// Attempt returns a skip Outcome for expected non-attempts (missing token,
// missing media); an error is reserved for unexpected transport or API
// failures and is isolated by the engine at the single-platform level.
type Publisher interface {
	// Platform returns the identifier this adapter serves.
	Platform() string

	// Attempt publishes the post to this platform.
	Attempt(ctx context.Context, post models.Post) (models.Outcome, error)
}

// Registry maps the closed set of platform identifiers to their adapters.
type Registry map[string]Publisher

// NewRegistry builds the adapter registry from the resolved configuration.
// Every platform is registered whether or not its token is configured; an
// unconfigured adapter reports a skip outcome, which keeps "not enabled"
// distinct from "unknown platform".
func NewRegistry(cfg config.Config) Registry {
	reg := Registry{}
	for _, p := range []Publisher{
		NewInstagram(cfg.InstagramToken),
		NewFacebook(cfg.FacebookToken),
		NewTikTok(cfg.TikTokToken),
		NewYouTube(cfg.YouTubeToken),
	} {
		reg[p.Platform()] = p
	}
	slog.Debug("publisher.NewRegistry: registry built", "platforms", len(reg))
	return reg
}

// Lookup resolves a platform identifier. Unknown identifiers return false
// and count against the post as "not supported".
func (r Registry) Lookup(platform string) (Publisher, bool) {
	p, ok := r[platform]
	return p, ok
}

func newAttemptClient() *http.Client {
	return &http.Client{Timeout: DefaultAttemptTimeout}
}
