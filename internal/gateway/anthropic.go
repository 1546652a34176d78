package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/genzai-dev/genzai/internal/chat"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const anthropicMaxTokens = 4096

// anthropicClient wraps the Anthropic Messages API. Images go out as base64
// image blocks; video has no slot on this surface and is skipped.
type anthropicClient struct {
	client *anthropic.Client
}

func newAnthropicClient(apiKey string) *anthropicClient {
	return &anthropicClient{client: anthropic.NewClient(apiKey)}
}

func (c *anthropicClient) name() string { return "anthropic" }

func (c *anthropicClient) generate(ctx context.Context, modelID, system string, turns []turn) (providerResponse, error) {
	msgs := make([]anthropic.Message, 0, len(turns))
	for _, t := range turns {
		role := anthropic.RoleUser
		if t.Role == chat.RoleModel {
			role = anthropic.RoleAssistant
		}

		msgs = append(msgs, anthropic.Message{Role: role, Content: anthropicContent(t.Parts)})
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(modelID),
		Messages:  msgs,
		MaxTokens: anthropicMaxTokens,
	}
	if system != "" {
		req.MultiSystem = []anthropic.MessageSystemPart{{Type: "text", Text: system}}
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		return providerResponse{}, fmt.Errorf("anthropic request failed: %w", err)
	}

	out := providerResponse{}
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			out.Parts = append(out.Parts, textPart(*block.Text))
		}
	}
	return out, nil
}

// anthropicContent converts one turn's parts into Anthropic content blocks:
// images become vision blocks, PDFs become document blocks, video is skipped
// since the Messages API has no slot for it. The API rejects empty content,
// so a blank turn degrades to a single space.
func anthropicContent(parts []part) []anthropic.MessageContent {
	var content []anthropic.MessageContent
	for _, p := range parts {
		switch {
		case p.isMedia() && strings.HasPrefix(p.MIME, "image/"):
			content = append(content, anthropic.NewImageMessageContent(
				anthropic.NewMessageContentSource(
					anthropic.MessagesContentSourceTypeBase64,
					p.MIME,
					p.Data,
				),
			))
		case p.isMedia() && p.MIME == "application/pdf":
			content = append(content, anthropic.NewPDFDocumentMessageContent(
				p.Data, "", "", false,
			))
		case p.isMedia():
		case p.Text != "":
			content = append(content, anthropic.NewTextMessageContent(p.Text))
		}
	}
	if len(content) == 0 {
		content = append(content, anthropic.NewTextMessageContent(" "))
	}
	return content
}

var _ provider = (*anthropicClient)(nil)
