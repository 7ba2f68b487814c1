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

// DefaultYouTubeUploadBase is the YouTube Data API resumable upload endpoint.
const DefaultYouTubeUploadBase = "https://www.googleapis.com/upload/youtube/v3"

// YouTube publishes videos through the Data API resumable upload protocol:
// an init call opens an upload session, then the video bytes are streamed to
// the session URL. The byte transfer uses the long timeout tier.
type YouTube struct {
	token     string
	baseURL   string
	client    *http.Client
	transfers *http.Client
}

// NewYouTube creates the YouTube adapter. An empty token leaves the adapter
// registered but disabled.
func NewYouTube(token string) *YouTube {
	return &YouTube{
		token:     token,
		baseURL:   DefaultYouTubeUploadBase,
		client:    newAttemptClient(),
		transfers: &http.Client{Timeout: UploadTimeout},
	}
}

func (yt *YouTube) Platform() string { return "youtube" }

func (yt *YouTube) Attempt(ctx context.Context, post models.Post) (models.Outcome, error) {
	if yt.token == "" {
		slog.Warn("YouTube token not configured, skipping", "post", post.ID)
		return models.Skip("youtube token not configured"), nil
	}
	if post.VideoURL == "" {
		slog.Warn("YouTube post has no video, skipping", "post", post.ID)
		return models.Skip("post has no video"), nil
	}

	uploadURL, err := yt.initSession(ctx, post)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("youtube upload init: %w", err)
	}
	videoID, err := yt.sendBytes(ctx, uploadURL, post.VideoURL)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("youtube upload: %w", err)
	}

	slog.Info("YouTube published", "post", post.ID, "video_id", videoID)
	return models.Outcome{Published: true, ExternalID: videoID, URL: "https://youtu.be/" + videoID}, nil
}

// initSession opens a resumable upload session and returns its URL.
func (yt *YouTube) initSession(ctx context.Context, post models.Post) (string, error) {
	meta := map[string]any{
		"snippet": map[string]any{
			"title":       post.Caption,
			"description": post.FullCaption(),
		},
		"status": map[string]any{
			"privacyStatus": "public",
		},
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		yt.baseURL+"/videos?uploadType=resumable&part=snippet,status", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+yt.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := yt.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}
	uploadURL := resp.Header.Get("Location")
	if uploadURL == "" {
		return "", fmt.Errorf("session response carried no Location header")
	}
	return uploadURL, nil
}

// sendBytes streams the video from its source URL into the upload session
// and returns the created video id.
func (yt *YouTube) sendBytes(ctx context.Context, uploadURL, videoURL string) (string, error) {
	srcReq, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", err
	}
	src, err := yt.transfers.Do(srcReq)
	if err != nil {
		return "", fmt.Errorf("fetching video: %w", err)
	}
	defer src.Body.Close()
	if src.StatusCode < 200 || src.StatusCode >= 300 {
		return "", fmt.Errorf("fetching video: status %d", src.StatusCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, src.Body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+yt.token)
	req.Header.Set("Content-Type", "video/*")
	if src.ContentLength > 0 {
		req.ContentLength = src.ContentLength
	}

	resp, err := yt.transfers.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
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
		return "", fmt.Errorf("response carried no video id: %s", string(raw))
	}
	return out.ID, nil
}
