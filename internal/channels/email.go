package channels

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"

	"github.com/copp1723/ccl-3-final-sub003/platform/config"
)

const emailSystemInstructions = `You are a friendly automotive finance assistant writing emails to potential customers. Keep replies short, conversational, and focused on understanding the customer's vehicle needs and financing situation. Never promise loan approval or quote exact rates.`

// EmailDriver delivers via SMTP using go-mail.
type EmailDriver struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	generator Generator
}

// NewEmailDriver creates the SMTP-backed email driver.
func NewEmailDriver(cfg config.EmailConfig, generator Generator) *EmailDriver {
	return &EmailDriver{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		generator: generator,
	}
}

func (d *EmailDriver) Channel() string { return ChannelEmail }

func (d *EmailDriver) GenerateMessage(ctx context.Context, req GenerateRequest) (string, error) {
	return d.generator.Generate(ctx, emailSystemInstructions, buildPrompt(req))
}

func (d *EmailDriver) Send(ctx context.Context, out OutboundMessage) (Receipt, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(d.fromName, d.fromEmail); err != nil {
		return Receipt{}, fmt.Errorf("email from: %w", err)
	}
	if err := msg.To(out.Recipient); err != nil {
		return Receipt{}, fmt.Errorf("email to: %w", err)
	}

	subject := out.Subject
	if subject == "" {
		subject = "Following up on your inquiry"
	}
	msg.Subject(subject)

	messageID := uuid.NewString()
	msg.SetMessageIDWithValue(messageID)
	msg.SetBodyString(gomail.TypeTextPlain, out.Content)

	client, err := gomail.NewClient(d.host,
		gomail.WithPort(d.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(d.username),
		gomail.WithPassword(d.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return Receipt{}, fmt.Errorf("email client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return Receipt{}, fmt.Errorf("email send: %w", err)
	}

	return Receipt{ExternalID: messageID, Status: "sent"}, nil
}
