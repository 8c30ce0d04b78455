package channels

import (
	"context"
	"strings"
	"time"

	imap "github.com/BrianLeishman/go-imap"
	"github.com/google/uuid"

	"github.com/copp1723/ccl-3-final-sub003/platform/config"
	"github.com/copp1723/ccl-3-final-sub003/platform/logger"
)

// LeadLookup resolves an inbound sender address to a lead.
type LeadLookup interface {
	ResolveByEmail(ctx context.Context, email string) (uuid.UUID, error)
}

// InboundHandler receives messages pulled off a channel. The conversation
// service implements this and owns the mode transition that follows.
type InboundHandler interface {
	HandleInbound(ctx context.Context, leadID uuid.UUID, channel, content string) error
}

// InboundEmailPoller watches an IMAP inbox for replies and feeds them into the
// conversation pipeline. Messages from unknown senders are marked seen and
// skipped.
type InboundEmailPoller struct {
	cfg     config.IMAPConfig
	lookup  LeadLookup
	handler InboundHandler
	log     *logger.Logger
}

func NewInboundEmailPoller(cfg config.IMAPConfig, lookup LeadLookup, handler InboundHandler, log *logger.Logger) *InboundEmailPoller {
	return &InboundEmailPoller{cfg: cfg, lookup: lookup, handler: handler, log: log}
}

// Run polls until the context is canceled. A failed poll is logged and
// retried on the next tick; the poller never takes the process down.
func (p *InboundEmailPoller) Run(ctx context.Context) error {
	if !p.cfg.IsIMAPEnabled() {
		p.log.Info("inbound email poller disabled, no IMAP host configured")
		return nil
	}

	interval := p.cfg.GetIMAPPollInterval()
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.log.Info("inbound email poller started", "host", p.cfg.GetIMAPHost(), "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				p.log.Error("inbound email poll failed", "error", err.Error())
			}
		}
	}
}

func (p *InboundEmailPoller) pollOnce(ctx context.Context) error {
	im, err := imap.New(p.cfg.GetIMAPUsername(), p.cfg.GetIMAPPassword(), p.cfg.GetIMAPHost(), p.cfg.GetIMAPPort())
	if err != nil {
		return err
	}
	defer im.Close()

	if err := im.SelectFolder("INBOX"); err != nil {
		return err
	}

	uids, err := im.GetUIDs("UNSEEN")
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}

	emails, err := im.GetEmails(uids...)
	if err != nil {
		return err
	}

	for uid, msg := range emails {
		p.handleMessage(ctx, msg)
		// Mark seen even when routing fails so one poison message cannot
		// wedge the inbox. The failure is already logged with the sender.
		if err := im.MarkSeen(uid); err != nil {
			p.log.Error("failed to mark email seen", "uid", uid, "error", err.Error())
		}
	}
	return nil
}

func (p *InboundEmailPoller) handleMessage(ctx context.Context, msg *imap.Email) {
	sender := firstAddress(msg.From)
	if sender == "" {
		return
	}

	content := replyText(msg.Text)
	if content == "" {
		return
	}

	leadID, err := p.lookup.ResolveByEmail(ctx, sender)
	if err != nil {
		p.log.Warn("inbound email from unknown sender", "from", sender)
		return
	}

	if err := p.handler.HandleInbound(ctx, leadID, ChannelEmail, content); err != nil {
		p.log.WithLeadID(leadID.String()).Error("failed to process inbound email", "error", err.Error())
	}
}

func firstAddress(addrs imap.EmailAddresses) string {
	for addr := range addrs {
		return strings.ToLower(strings.TrimSpace(addr))
	}
	return ""
}

// replyText trims quoted history off a reply body, keeping only what the
// lead actually wrote.
func replyText(body string) string {
	lines := strings.Split(body, "\n")
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		if strings.HasPrefix(trimmed, "On ") && strings.HasSuffix(trimmed, "wrote:") {
			break
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
