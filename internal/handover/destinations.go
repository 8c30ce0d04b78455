package handover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"

	"github.com/copp1723/ccl-3-final-sub003/platform/config"
)

// Dossier is the lead summary pushed to every destination.
type Dossier struct {
	LeadID   uuid.UUID      `json:"leadId"`
	Name     string         `json:"name"`
	Email    string         `json:"email,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Source   string         `json:"source"`
	Score    int            `json:"qualificationScore"`
	Reason   string         `json:"handoverReason"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// carrier pushes a dossier to one destination kind and returns the remote
// identifier when the destination provides one.
type carrier interface {
	Push(ctx context.Context, dest Destination, dossier Dossier) (externalID string, err error)
}

// carrierFor selects the carrier by exhaustive match on the destination kind.
func (d *Deliverer) carrierFor(kind string) (carrier, error) {
	switch kind {
	case KindCRM:
		return &crmCarrier{client: d.httpClient}, nil
	case KindMarketplace:
		return &marketplaceCarrier{client: d.httpClient}, nil
	case KindWebhook:
		return &webhookCarrier{client: d.httpClient}, nil
	case KindEmailNotify:
		return &emailNotifyCarrier{cfg: d.emailCfg}, nil
	default:
		return nil, fmt.Errorf("unknown destination kind %q", kind)
	}
}

// crmCarrier pushes a record shaped by the destination's field mapping: each
// mapping entry renames a dossier field to whatever the CRM expects.
type crmCarrier struct {
	client *http.Client
}

func (c *crmCarrier) Push(ctx context.Context, dest Destination, dossier Dossier) (string, error) {
	record := map[string]any{}
	source := map[string]any{
		"name":   dossier.Name,
		"email":  dossier.Email,
		"phone":  dossier.Phone,
		"source": dossier.Source,
		"score":  dossier.Score,
		"reason": dossier.Reason,
	}
	for from, to := range dest.FieldMapping {
		if v, ok := source[from]; ok {
			record[to] = v
		}
	}
	if len(record) == 0 {
		record = source
	}
	record["external_ref"] = dossier.LeadID.String()

	var resp struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, c.client, dest, record, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// marketplaceCarrier pushes the fixed marketplace schema and reads back the
// match result.
type marketplaceCarrier struct {
	client *http.Client
}

func (c *marketplaceCarrier) Push(ctx context.Context, dest Destination, dossier Dossier) (string, error) {
	payload := map[string]any{
		"lead_id":    dossier.LeadID.String(),
		"first_name": firstWord(dossier.Name),
		"email":      dossier.Email,
		"phone":      dossier.Phone,
		"score":      dossier.Score,
	}

	var resp struct {
		Matched bool    `json:"matched"`
		Price   float64 `json:"price"`
		LeadRef string  `json:"leadRef"`
	}
	if err := postJSON(ctx, c.client, dest, payload, &resp); err != nil {
		return "", err
	}
	if !resp.Matched {
		return "", fmt.Errorf("marketplace did not match lead")
	}
	return resp.LeadRef, nil
}

// webhookCarrier pushes a generic event envelope.
type webhookCarrier struct {
	client *http.Client
}

func (c *webhookCarrier) Push(ctx context.Context, dest Destination, dossier Dossier) (string, error) {
	payload := map[string]any{
		"event":      "lead.handover",
		"occurredAt": time.Now().UTC().Format(time.RFC3339),
		"data":       dossier,
	}
	if err := postJSON(ctx, c.client, dest, payload, nil); err != nil {
		return "", err
	}
	return "", nil
}

// emailNotifyCarrier mails a formatted summary to the destination address.
type emailNotifyCarrier struct {
	cfg config.EmailConfig
}

func (c *emailNotifyCarrier) Push(ctx context.Context, dest Destination, dossier Dossier) (string, error) {
	if !c.cfg.IsEmailEnabled() {
		return "", fmt.Errorf("email delivery not configured")
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(c.cfg.GetEmailFromName(), c.cfg.GetEmailFromAddress()); err != nil {
		return "", err
	}
	if err := msg.To(dest.Endpoint); err != nil {
		return "", err
	}
	msg.Subject(fmt.Sprintf("Qualified lead ready: %s (score %d)", dossier.Name, dossier.Score))
	msg.SetBodyString(mail.TypeTextPlain, formatSummary(dossier))

	client, err := mail.NewClient(c.cfg.GetSMTPHost(),
		mail.WithPort(c.cfg.GetSMTPPort()),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(c.cfg.GetSMTPUsername()),
		mail.WithPassword(c.cfg.GetSMTPPassword()),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(func(ctx context.Context, _, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return "", err
	}
	defer client.Close()

	return "", client.DialAndSendWithContext(ctx, msg)
}

func formatSummary(d Dossier) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lead %s is ready for follow-up.\n\n", d.Name)
	fmt.Fprintf(&b, "Reason: %s\n", d.Reason)
	fmt.Fprintf(&b, "Qualification score: %d\n", d.Score)
	if d.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", d.Email)
	}
	if d.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", d.Phone)
	}
	fmt.Fprintf(&b, "Source: %s\n", d.Source)
	fmt.Fprintf(&b, "Lead ID: %s\n", d.LeadID)
	return b.String()
}

// postJSON posts the payload to the destination endpoint with its configured
// auth and decodes the response into out when non-nil.
func postJSON(ctx context.Context, client *http.Client, dest Destination, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	applyAuth(req, dest.Auth)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("destination returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func applyAuth(req *http.Request, auth map[string]string) {
	if token := auth["bearer"]; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		return
	}
	if key := auth["api_key"]; key != "" {
		header := auth["header"]
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, key)
	}
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	return fields[0]
}
