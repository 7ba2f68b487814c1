// Package captions generates post captions with the OpenAI API.
//
// It is an optional collaborator of the publishing dispatcher: when a post
// reaches its slot without a caption, the engine asks for one here before
// dispatching. Generation failures never fail the post.
package captions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = "You write short, engaging social media captions. " +
	"Reply with the caption text only, no quotes, at most two sentences."

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Generator produces captions for posts scheduled without one.
type Generator struct {
	chat chatService
}

// NewGenerator initializes a caption generator with the given API key.
func NewGenerator(apiKey string) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key not set")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Generator{chat: &client.Chat.Completions}, nil
}

// Generate returns a caption for the given niche and hashtag block.
func (g *Generator) Generate(ctx context.Context, niche, hashtags string) (string, error) {
	user := "Write a caption for a post"
	if niche != "" {
		user += " in the " + niche + " niche"
	}
	if hashtags != "" {
		user += ", themed around: " + hashtags
	}
	user += "."

	resp, err := g.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT4oMini,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("caption generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("caption generation returned no choices")
	}
	caption := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("captions.Generate succeeded", "length", len(caption))
	return caption, nil
}
