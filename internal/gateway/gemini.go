package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// geminiClient calls the native Gemini generateContent REST API. This is the
// only surface that returns inline generated media, which the
// OpenAI-compatible endpoint cannot carry.
type geminiClient struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

func newGeminiClient(apiKey, baseURL string) *geminiClient {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &geminiClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpc:   &http.Client{},
	}
}

func (c *geminiClient) name() string { return "gemini" }

type geminiBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *geminiClient) generate(ctx context.Context, modelID, system string, turns []turn) (providerResponse, error) {
	body := geminiRequest{
		Contents: make([]geminiContent, 0, len(turns)),
	}
	if system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}

	for _, t := range turns {
		content := geminiContent{Role: string(t.Role)}
		for _, p := range t.Parts {
			if p.isMedia() {
				content.Parts = append(content.Parts, geminiPart{
					InlineData: &geminiBlob{MIMEType: p.MIME, Data: p.Data},
				})
			} else {
				content.Parts = append(content.Parts, geminiPart{Text: p.Text})
			}
		}
		body.Contents = append(body.Contents, content)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return providerResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, modelID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return providerResponse{}, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpc.Do(httpReq)
	if err != nil {
		return providerResponse{}, fmt.Errorf("gemini request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return providerResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return providerResponse{}, fmt.Errorf("malformed gemini response (status %d): %w", httpResp.StatusCode, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return providerResponse{}, fmt.Errorf("gemini error %d: %s", parsed.Error.Code, parsed.Error.Message)
		}
		return providerResponse{}, fmt.Errorf("gemini returned status %d", httpResp.StatusCode)
	}

	resp := providerResponse{}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		resp.Fallback = fmt.Sprintf("Permintaan diblokir oleh penyedia (%s).", parsed.PromptFeedback.BlockReason)
	}
	if len(parsed.Candidates) == 0 {
		return resp, nil
	}

	for _, p := range parsed.Candidates[0].Content.Parts {
		switch {
		case p.InlineData != nil:
			mime := p.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			resp.Parts = append(resp.Parts, mediaPart(mime, p.InlineData.Data))
		case p.Text != "":
			resp.Parts = append(resp.Parts, textPart(p.Text))
		}
	}
	return resp, nil
}

var _ provider = (*geminiClient)(nil)
