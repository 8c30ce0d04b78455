package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/copp1723/ccl-3-final-sub003/platform/config"
)

const chatSystemInstructions = `You are a friendly automotive finance assistant chatting with a website visitor. Keep replies to one or two sentences, warm and direct. Never promise loan approval or quote exact rates.`

// ChatDriver delivers to the website chat widget gateway.
type ChatDriver struct {
	baseURL   string
	apiKey    string
	http      *http.Client
	generator Generator
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type chatResponse struct {
	MessageID string `json:"messageId"`
}

// NewChatDriver creates the gateway-backed chat driver.
func NewChatDriver(cfg config.ChatConfig, generator Generator) *ChatDriver {
	return &ChatDriver{
		baseURL:   strings.TrimRight(cfg.GetChatGatewayURL(), "/"),
		apiKey:    cfg.GetChatGatewayKey(),
		http:      &http.Client{Timeout: 10 * time.Second},
		generator: generator,
	}
}

func (d *ChatDriver) Channel() string { return ChannelChat }

func (d *ChatDriver) GenerateMessage(ctx context.Context, req GenerateRequest) (string, error) {
	return d.generator.Generate(ctx, chatSystemInstructions, buildPrompt(req))
}

func (d *ChatDriver) Send(ctx context.Context, out OutboundMessage) (Receipt, error) {
	// For chat, the recipient is the widget session id.
	payload := chatRequest{
		SessionID: out.Recipient,
		Message:   out.Content,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/send", bytes.NewBuffer(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("chat request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return Receipt{}, fmt.Errorf("chat gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Receipt{}, fmt.Errorf("decode chat response: %w", err)
	}

	return Receipt{ExternalID: result.MessageID, Status: "sent"}, nil
}
