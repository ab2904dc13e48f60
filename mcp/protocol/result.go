package protocol

import (
	"encoding/json"

	"github.com/flowcraft/core/errs"
)

// normalizeResult flattens the first content item of a tools/call response
// into a Result. Text content that is itself valid JSON is passed through
// unmodified; plain text is re-encoded as a JSON string so callers always
// receive a JSON payload.
func normalizeResult(raw ToolCallResult) (Result, error) {
	if len(raw.Content) == 0 {
		return Result{}, errs.New(errs.Protocol, "mcp: tool call returned no content")
	}
	item := raw.Content[0]
	var payload json.RawMessage
	var structured json.RawMessage
	if item.Text != nil {
		text := []byte(*item.Text)
		if json.Valid(text) {
			payload = append(json.RawMessage(nil), text...)
			if item.MimeType != nil && *item.MimeType == "application/json" {
				structured = append(json.RawMessage(nil), text...)
			}
		} else {
			encoded, err := json.Marshal(*item.Text)
			if err != nil {
				return Result{}, errs.Wrap(errs.Protocol, "mcp: encode tool text content", err)
			}
			payload = encoded
		}
	}
	if len(payload) == 0 {
		return Result{}, errs.New(errs.Protocol, "mcp: tool call content carried no text")
	}
	if structured == nil && json.Valid(payload) {
		structured = append(json.RawMessage(nil), payload...)
	}
	return Result{Payload: payload, Structured: structured}, nil
}
