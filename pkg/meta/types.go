package meta

import (
	"encoding/json"
	"fmt"
)

// SendMessageRequest is the Cloud API /messages payload.
type SendMessageRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type,omitempty"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *TextPayload     `json:"text,omitempty"`
	Template         *TemplatePayload `json:"template,omitempty"`
}

type TextPayload struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type TemplatePayload struct {
	Name       string            `json:"name"`
	Language   TemplateLanguage  `json:"language"`
	Components []json.RawMessage `json:"components,omitempty"`
}

type TemplateLanguage struct {
	Code string `json:"code"`
}

// SendMessageResponse is the Cloud API /messages success body.
type SendMessageResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// MessageID returns the provider id of the first accepted message.
func (r *SendMessageResponse) MessageID() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// APIError is the Cloud API error envelope. The HTTP status code decides
// retryability upstream; the provider code and message go into error records.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Type       string `json:"type"`
	Message    string `json:"message"`
	Details    string `json:"error_data,omitempty"`
	FBTraceID  string `json:"fbtrace_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("meta API error %d (http %d): %s", e.Code, e.StatusCode, e.Message)
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}
