package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/genzai-dev/genzai/internal/chat"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// geminiCompatBaseURL is Gemini's OpenAI-compatible endpoint. Useful when the
// native REST surface is unavailable, at the cost of inline media in
// responses.
const geminiCompatBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// openAIClient talks to any OpenAI-compatible chat completions endpoint.
type openAIClient struct {
	client *openai.Client
}

func newOpenAIClient(apiKey, baseURL string) *openAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &openAIClient{client: openai.NewClientWithConfig(config)}
}

func (c *openAIClient) name() string { return "openai" }

func (c *openAIClient) generate(ctx context.Context, modelID, system string, turns []turn) (providerResponse, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		if t.Role == chat.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}

		if !hasMedia(t.Parts) {
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    role,
				Content: joinText(t.Parts),
			})
			continue
		}

		// Multi-part content. Only images survive the trip; the chat
		// completions surface has no slot for video or documents.
		parts := make([]openai.ChatMessagePart, 0, len(t.Parts))
		for _, p := range t.Parts {
			if p.isMedia() {
				if !strings.HasPrefix(p.MIME, "image/") {
					continue
				}
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: "data:" + p.MIME + ";base64," + p.Data,
					},
				})
			} else {
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: p.Text,
				})
			}
		}
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:         role,
			MultiContent: parts,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    modelID,
		Messages: msgs,
	})
	if err != nil {
		return providerResponse{}, fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return providerResponse{}, fmt.Errorf("empty response from provider")
	}

	out := providerResponse{}
	if content := resp.Choices[0].Message.Content; content != "" {
		out.Parts = append(out.Parts, textPart(content))
	}
	return out, nil
}

var _ provider = (*openAIClient)(nil)

func hasMedia(parts []part) bool {
	for _, p := range parts {
		if p.isMedia() {
			return true
		}
	}
	return false
}

func joinText(parts []part) string {
	var text string
	for _, p := range parts {
		if !p.isMedia() {
			text += p.Text
		}
	}
	return text
}
