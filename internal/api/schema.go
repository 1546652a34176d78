package api

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// chatRequestSchema validates the forwarding endpoint's body before any
// decoding-dependent work runs.
const chatRequestSchema = `{
  "type": "object",
  "required": ["message", "history", "modelId"],
  "properties": {
    "message": {"type": "string"},
    "modelId": {"type": "string", "minLength": 1},
    "history": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["role", "text"],
        "properties": {
          "role": {"type": "string", "enum": ["user", "model"]},
          "text": {"type": "string"}
        }
      }
    },
    "imageBase64": {"type": "string"},
    "videoBase64": {"type": "string"},
    "documentBase64": {"type": "string"}
  }
}`

var compiledChatSchema = gojsonschema.NewStringLoader(chatRequestSchema)

// validateChatRequest checks a raw JSON body against the chat schema and
// reports all violations in one message.
func validateChatRequest(body []byte) error {
	result, err := gojsonschema.Validate(compiledChatSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
	}
	return nil
}
