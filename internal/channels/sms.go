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

	"golang.org/x/time/rate"

	"github.com/copp1723/ccl-3-final-sub003/platform/config"
	"github.com/copp1723/ccl-3-final-sub003/platform/phone"
)

const smsSystemInstructions = `You are a friendly automotive finance assistant texting potential customers. Replies must fit in one SMS: under 160 characters, plain language, one question at a time. Never promise loan approval or quote exact rates.`

// SMSDriver delivers through an HTTP SMS gateway. Outbound calls are rate
// limited to stay inside the provider's sending quota.
type SMSDriver struct {
	baseURL   string
	apiKey    string
	http      *http.Client
	limiter   *rate.Limiter
	generator Generator
}

type smsRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type smsResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// NewSMSDriver creates the gateway-backed SMS driver.
func NewSMSDriver(cfg config.SMSConfig, generator Generator) *SMSDriver {
	perSecond := cfg.GetSMSRatePerSecond()
	if perSecond <= 0 {
		perSecond = 1
	}

	return &SMSDriver{
		baseURL:   strings.TrimRight(cfg.GetSMSGatewayURL(), "/"),
		apiKey:    cfg.GetSMSGatewayKey(),
		http:      &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(perSecond), 1),
		generator: generator,
	}
}

func (d *SMSDriver) Channel() string { return ChannelSMS }

func (d *SMSDriver) GenerateMessage(ctx context.Context, req GenerateRequest) (string, error) {
	return d.generator.Generate(ctx, smsSystemInstructions, buildPrompt(req))
}

func (d *SMSDriver) Send(ctx context.Context, out OutboundMessage) (Receipt, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return Receipt{}, err
	}

	payload := smsRequest{
		To:      phone.NormalizeE164(out.Recipient),
		Message: out.Content,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/messages", bytes.NewBuffer(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return Receipt{}, fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Receipt{}, fmt.Errorf("decode sms response: %w", err)
	}
	if result.Status == "" {
		result.Status = "sent"
	}

	return Receipt{ExternalID: result.MessageID, Status: result.Status}, nil
}
