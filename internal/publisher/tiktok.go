package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/contenthub/hubdispatch/internal/models"
)

// DefaultTikTokBase is the TikTok Content Posting API endpoint.
const DefaultTikTokBase = "https://open.tiktokapis.com"

// TikTok publishes videos through the Content Posting API v2 in
// pull-from-URL mode: one init call hands TikTok the video URL and returns a
// publish id; TikTok fetches the bytes itself.
type TikTok struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewTikTok creates the TikTok adapter. An empty token leaves the adapter
// registered but disabled.
func NewTikTok(token string) *TikTok {
	return &TikTok{token: token, baseURL: DefaultTikTokBase, client: newAttemptClient()}
}

func (tt *TikTok) Platform() string { return "tiktok" }

func (tt *TikTok) Attempt(ctx context.Context, post models.Post) (models.Outcome, error) {
	if tt.token == "" {
		slog.Warn("TikTok token not configured, skipping", "post", post.ID)
		return models.Skip("tiktok token not configured"), nil
	}
	if post.VideoURL == "" {
		slog.Warn("TikTok post has no video, skipping", "post", post.ID)
		return models.Skip("post has no video"), nil
	}

	body := map[string]any{
		"post_info": map[string]any{
			"title": post.FullCaption(),
		},
		"source_info": map[string]any{
			"source":    "PULL_FROM_URL",
			"video_url": post.VideoURL,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("tiktok init: encoding body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tt.baseURL+"/v2/post/publish/video/init/", bytes.NewReader(payload))
	if err != nil {
		return models.Outcome{}, err
	}
	req.Header.Set("Authorization", "Bearer "+tt.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := tt.client.Do(req)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("tiktok init: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("tiktok init: reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Outcome{}, fmt.Errorf("tiktok init: status %d: %s", resp.StatusCode, string(raw))
	}

	var out struct {
		Data struct {
			PublishID string `json:"publish_id"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.Outcome{}, fmt.Errorf("tiktok init: decoding response: %w", err)
	}
	if out.Error.Code != "" && out.Error.Code != "ok" {
		return models.Outcome{}, fmt.Errorf("tiktok init: %s: %s", out.Error.Code, out.Error.Message)
	}
	if out.Data.PublishID == "" {
		return models.Outcome{}, fmt.Errorf("tiktok init: response carried no publish_id: %s", string(raw))
	}

	slog.Info("TikTok publish initiated", "post", post.ID, "publish_id", out.Data.PublishID)
	return models.Outcome{Published: true, ExternalID: out.Data.PublishID}, nil
}
