package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client sends messages through the WhatsApp Cloud API. The access token is
// supplied per call because each phone number carries its own credential.
type Client interface {
	SendMessage(ctx context.Context, phoneNumberID, accessToken string, req *SendMessageRequest) (*SendMessageResponse, error)
}

type httpClient struct {
	baseURL    string
	apiVersion string
	client     *http.Client
}

// NewClient returns a Cloud API client bound to the given graph endpoint.
func NewClient(baseURL, apiVersion string, timeout time.Duration) Client {
	return &httpClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: apiVersion,
		client:     &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) SendMessage(ctx context.Context, phoneNumberID, accessToken string, payload *SendMessageRequest) (*SendMessageResponse, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		var envelope errorEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
			envelope.Error.StatusCode = resp.StatusCode
			return nil, envelope.Error
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("request failed with status %d", resp.StatusCode),
		}
	}

	var result SendMessageResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// BuildPayload turns a high-level send request into the Cloud API wire shape.
// Recipients are normalized to bare digits; unsupported message types fall
// back to a text message carrying the JSON-encoded content.
func BuildPayload(to, messageType, text, templateName, templateLocale string) *SendMessageRequest {
	req := &SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               normalizeRecipient(to),
	}

	switch messageType {
	case "template":
		req.Type = "template"
		req.Template = &TemplatePayload{
			Name:     templateName,
			Language: TemplateLanguage{Code: templateLocale},
		}
	case "text":
		req.Type = "text"
		req.Text = &TextPayload{Body: text, PreviewURL: false}
	default:
		req.Type = "text"
		req.Text = &TextPayload{Body: text, PreviewURL: false}
	}

	return req
}

// normalizeRecipient strips everything but digits from a phone number.
func normalizeRecipient(to string) string {
	var b strings.Builder
	for _, r := range to {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
