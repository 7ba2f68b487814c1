package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/contenthub/hubdispatch/internal/models"
)

// DefaultFacebookGraphBase is the Facebook Graph API endpoint.
const DefaultFacebookGraphBase = "https://graph.facebook.com/v19.0"

// Facebook publishes page posts through the Facebook Graph API: a photo post
// when the item carries an image, a plain feed post otherwise.
type Facebook struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewFacebook creates the Facebook adapter. An empty token leaves the
// adapter registered but disabled.
func NewFacebook(token string) *Facebook {
	return &Facebook{token: token, baseURL: DefaultFacebookGraphBase, client: newAttemptClient()}
}

func (fb *Facebook) Platform() string { return "facebook" }

func (fb *Facebook) Attempt(ctx context.Context, post models.Post) (models.Outcome, error) {
	if fb.token == "" {
		slog.Warn("Facebook token not configured, skipping", "post", post.ID)
		return models.Skip("facebook token not configured"), nil
	}

	params := url.Values{}
	params.Set("access_token", fb.token)
	var path string
	if post.ImageURL != "" {
		path = "/me/photos"
		params.Set("url", post.ImageURL)
		params.Set("caption", post.FullCaption())
	} else {
		path = "/me/feed"
		params.Set("message", post.FullCaption())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fb.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return models.Outcome{}, err
	}
	resp, err := fb.client.Do(req)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("facebook publish: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("facebook publish: reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Outcome{}, fmt.Errorf("facebook publish: status %d: %s", resp.StatusCode, string(raw))
	}
	var out struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.Outcome{}, fmt.Errorf("facebook publish: decoding response: %w", err)
	}
	externalID := out.PostID
	if externalID == "" {
		externalID = out.ID
	}

	slog.Info("Facebook published", "post", post.ID, "external_id", externalID)
	return models.Outcome{Published: true, ExternalID: externalID}, nil
}
