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

// DefaultInstagramGraphBase is the Instagram Graph API endpoint used for
// container creation and publishing.
const DefaultInstagramGraphBase = "https://graph.instagram.com/v19.0"

// Instagram publishes image posts through the Instagram Graph API. The
// protocol is two steps: create a media container, then publish it.
type Instagram struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewInstagram creates the Instagram adapter. An empty token leaves the
// adapter registered but disabled.
func NewInstagram(token string) *Instagram {
	return &Instagram{token: token, baseURL: DefaultInstagramGraphBase, client: newAttemptClient()}
}

func (ig *Instagram) Platform() string { return "instagram" }

func (ig *Instagram) Attempt(ctx context.Context, post models.Post) (models.Outcome, error) {
	if ig.token == "" {
		slog.Warn("Instagram token not configured, skipping", "post", post.ID)
		return models.Skip("instagram token not configured"), nil
	}
	if post.ImageURL == "" {
		// Image-less feed posts are not allowed on the Graph API.
		slog.Warn("Instagram post has no image, skipping", "post", post.ID)
		return models.Skip("post has no image"), nil
	}

	// Step 1: create the media container.
	params := url.Values{}
	params.Set("caption", post.FullCaption())
	params.Set("image_url", post.ImageURL)
	params.Set("media_type", "IMAGE")
	params.Set("access_token", ig.token)
	mediaID, err := ig.post(ctx, "/me/media", params)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("instagram media create: %w", err)
	}

	// Step 2: publish the container.
	params = url.Values{}
	params.Set("creation_id", mediaID)
	params.Set("access_token", ig.token)
	postID, err := ig.post(ctx, "/me/media_publish", params)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("instagram publish: %w", err)
	}

	slog.Info("Instagram published", "post", post.ID, "external_id", postID)
	return models.Outcome{Published: true, ExternalID: postID}, nil
}

// post issues one Graph API call with query-string parameters and returns the
// id field of the JSON response.
func (ig *Instagram) post(ctx context.Context, path string, params url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ig.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := ig.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("response carried no id: %s", string(raw))
	}
	return out.ID, nil
}
