package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/finledger/backend/internal/application/ledger"
	"github.com/finledger/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// mailSender abstracts the SMTP dialer so tests can capture messages
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailDispatcher sends magic-link approval emails over SMTP. It implements
// the application layer's NotificationDispatcher port.
type EmailDispatcher struct {
	sender      mailSender
	from        string
	linkBaseURL string
	logger      *zap.Logger
}

// NewEmailDispatcher creates a dispatcher from SMTP and approval settings
func NewEmailDispatcher(smtpCfg config.SMTPConfig, approvalCfg config.ApprovalConfig, logger *zap.Logger) *EmailDispatcher {
	return &EmailDispatcher{
		sender:      gomail.NewDialer(smtpCfg.Host, smtpCfg.Port, smtpCfg.Username, smtpCfg.Password),
		from:        smtpCfg.From,
		linkBaseURL: strings.TrimSuffix(approvalCfg.LinkBaseURL, "/"),
		logger:      logger,
	}
}

// DispatchApprovalRequest sends one approval email carrying the magic link.
// The returned error is informational; callers treat delivery as best effort.
func (d *EmailDispatcher) DispatchApprovalRequest(ctx context.Context, req ledger.ApprovalRequest) error {
	if req.RecipientEmail == "" {
		return fmt.Errorf("approval request has no recipient")
	}

	link := d.approvalLink(req.Token)

	m := gomail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", req.RecipientEmail)
	m.SetHeader("Subject", d.subject(req))
	m.SetBody("text/html", d.body(req, link))

	if err := d.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send approval email to %s: %w", req.RecipientEmail, err)
	}

	d.logger.Info("approval email sent",
		zap.String("kind", string(req.Kind)),
		zap.String("recipient", req.RecipientEmail),
	)
	return nil
}

// DispatchStatusUpdate emails the requester the outcome of a decision on
// something they routed for approval.
func (d *EmailDispatcher) DispatchStatusUpdate(ctx context.Context, upd ledger.StatusUpdate) error {
	if upd.RecipientEmail == "" {
		return fmt.Errorf("status update has no recipient")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", upd.RecipientEmail)
	m.SetHeader("Subject", d.statusSubject(upd))
	m.SetBody("text/html", d.statusBody(upd))

	if err := d.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send status update to %s: %w", upd.RecipientEmail, err)
	}

	d.logger.Info("status update sent",
		zap.String("kind", string(upd.Kind)),
		zap.String("status", upd.Status),
		zap.String("recipient", upd.RecipientEmail),
	)
	return nil
}

func (d *EmailDispatcher) statusSubject(upd ledger.StatusUpdate) string {
	noun := "Transaction"
	if upd.Kind != ledger.ApprovalKindTransaction {
		noun = "Payment batch"
	}
	return fmt.Sprintf("%s %s: %s", noun, statusPhrase(upd.Status), upd.Description)
}

func (d *EmailDispatcher) statusBody(upd ledger.StatusUpdate) string {
	var b strings.Builder

	b.WriteString("<p>Hello,</p>")
	noun := "transaction"
	if upd.Kind != ledger.ApprovalKindTransaction {
		noun = "payment batch"
	}
	fmt.Fprintf(&b, "<p>The %s <strong>%s</strong> of <strong>R$ %s</strong> was %s.</p>",
		noun, upd.Description, upd.Amount.StringFixed(2), statusPhrase(upd.Status))
	if upd.Reason != "" {
		fmt.Fprintf(&b, "<p>Reason: %s</p>", upd.Reason)
	}

	return b.String()
}

// statusPhrase renders a lifecycle status as the past-tense outcome the
// requester reads in the subject line.
func statusPhrase(status string) string {
	switch status {
	case "APPROVED":
		return "approved"
	case "REJECTED":
		return "rejected"
	case "AUTHORIZED":
		return "authorized for payment"
	case "OPEN", "DRAFT":
		return "returned for changes"
	default:
		return strings.ToLower(status)
	}
}

// approvalLink builds the public magic-link URL for a token
func (d *EmailDispatcher) approvalLink(token string) string {
	return fmt.Sprintf("%s/api/v1/approvals/%s", d.linkBaseURL, token)
}

func (d *EmailDispatcher) subject(req ledger.ApprovalRequest) string {
	switch req.Kind {
	case ledger.ApprovalKindBatch:
		return fmt.Sprintf("Payment batch awaiting your approval: %s", req.Description)
	case ledger.ApprovalKindBatchAuthorization:
		return fmt.Sprintf("Payment batch awaiting payment authorization: %s", req.Description)
	default:
		return fmt.Sprintf("Transaction awaiting your approval: %s", req.Description)
	}
}

func (d *EmailDispatcher) body(req ledger.ApprovalRequest, link string) string {
	var b strings.Builder

	b.WriteString("<p>Hello,</p>")
	switch req.Kind {
	case ledger.ApprovalKindBatch:
		fmt.Fprintf(&b, "<p>The payment batch <strong>%s</strong> with %d transaction(s) totaling <strong>R$ %s</strong> is awaiting your approval.</p>",
			req.Description, req.MemberCount, req.Amount.StringFixed(2))
	case ledger.ApprovalKindBatchAuthorization:
		fmt.Fprintf(&b, "<p>The approved payment batch <strong>%s</strong> totaling <strong>R$ %s</strong> is awaiting your payment authorization.</p>",
			req.Description, req.Amount.StringFixed(2))
	default:
		fmt.Fprintf(&b, "<p>The transaction <strong>%s</strong> of <strong>R$ %s</strong> is awaiting your approval.</p>",
			req.Description, req.Amount.StringFixed(2))
	}
	fmt.Fprintf(&b, "<p><a href=\"%s\">Review and decide</a></p>", link)
	fmt.Fprintf(&b, "<p>This link is personal and expires on %s. No login is required.</p>",
		req.ExpiresAt.Format("02 Jan 2006 15:04 MST"))

	return b.String()
}

// Ensure EmailDispatcher implements NotificationDispatcher
var _ ledger.NotificationDispatcher = (*EmailDispatcher)(nil)
