package services

import (
	"context"
	"fmt"
	"net"
	"time"

	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/logger"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const defaultMailTimeout = 15 * time.Second

// Message is a rendered notification
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers a rendered message
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NewNotifier returns an SMTP notifier when mail is configured, a log notifier otherwise
func NewNotifier(cfg config.MailConfig) Notifier {
	if cfg.Host == "" {
		logger.Warn("MAIL_HOST not set, notifications will only be logged")
		return LogNotifier{}
	}
	return NewMailNotifier(cfg)
}

// MailNotifier sends plain-text email over SMTP. Every exchange is bounded by the
// configured timeout and by ctx.
type MailNotifier struct {
	cfg     config.MailConfig
	timeout time.Duration
	send    func(ctx context.Context, m *mail.Msg) error
}

// NewMailNotifier creates an SMTP notifier
func NewMailNotifier(cfg config.MailConfig) *MailNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultMailTimeout
	}
	n := &MailNotifier{cfg: cfg, timeout: timeout}
	n.send = n.dialAndSend
	return n
}

// Send delivers msg
func (n *MailNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := n.message(msg)
	if err != nil {
		return err
	}
	return n.send(ctx, m)
}

func (n *MailNotifier) message(msg Message) (*mail.Msg, error) {
	if msg.To == "" {
		return nil, fmt.Errorf("message has no recipient")
	}
	m := mail.NewMsg()
	if err := m.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", n.cfg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

func (n *MailNotifier) dialAndSend(ctx context.Context, m *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTimeout(n.timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(n.dial),
	}
	if n.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.User),
			mail.WithPassword(n.cfg.Password))
	}

	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mail client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, m)
}

// dial opens the SMTP connection with a deadline covering the whole exchange, so a
// peer that accepts and then stalls cannot hold a worker.
func (n *MailNotifier) dial(ctx context.Context, network, address string) (net.Conn, error) {
	deadline := time.Now().Add(n.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// LogNotifier writes messages to the log instead of sending them
type LogNotifier struct{}

// Send logs msg
func (LogNotifier) Send(_ context.Context, msg Message) error {
	logger.Info("notification", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// renderMessage builds the subject and body for an outbox event
func renderMessage(eventType, recipient string, p map[string]interface{}) Message {
	str := func(key string) string {
		if v, ok := p[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	}

	msg := Message{To: recipient}
	title := str("book_title")

	switch eventType {
	case domain.EventRequestSubmitted:
		msg.Subject = "Book request received"
		msg.Body = fmt.Sprintf("Hello %s,\n\nYour request for \"%s\" has been received and is waiting for approval.\n", str("user_name"), title)
	case domain.EventRequestApproved:
		msg.Subject = "Book request approved"
		msg.Body = fmt.Sprintf("Hello %s,\n\nYour request for \"%s\" was approved. Please return the book by %s.\n", str("user_name"), title, str("due_date"))
	case domain.EventRequestRejected:
		msg.Subject = "Book request rejected"
		msg.Body = fmt.Sprintf("Hello %s,\n\nYour request for \"%s\" was rejected.\n%s\n", str("user_name"), title, str("comments"))
	case domain.EventBookIssued:
		msg.Subject = "Book issued"
		msg.Body = fmt.Sprintf("Hello %s,\n\n\"%s\" has been issued to you. Due date: %s.\n", str("user_name"), title, str("due_date"))
	case domain.EventBookReturned:
		msg.Subject = "Book returned"
		msg.Body = fmt.Sprintf("Hello %s,\n\nWe received \"%s\". Outstanding fine: %s.\n", str("user_name"), title, str("fine_amount"))
	case domain.EventOverdueFine:
		msg.Subject = "Overdue book fine"
		msg.Body = fmt.Sprintf("Hello %s,\n\n\"%s\" is %s day(s) overdue. Current fine: %s.\n", str("user_name"), title, str("overdue_days"), str("fine_amount"))
	case domain.EventDueSoonReminder:
		msg.Subject = "Book due soon"
		msg.Body = fmt.Sprintf("Hello %s,\n\n\"%s\" is due on %s.\n", str("user_name"), title, str("due_date"))
	case domain.EventFinePaid:
		msg.Subject = "Fine payment received"
		msg.Body = fmt.Sprintf("Hello %s,\n\nWe received your payment of %s.\n", str("user_name"), str("amount"))
	case domain.EventFineWaived:
		msg.Subject = "Fine waived"
		msg.Body = fmt.Sprintf("Hello %s,\n\nYour fine of %s has been waived.\n", str("user_name"), str("amount"))
	case domain.EventDonationReceived:
		msg.Subject = "Thank you for your donation"
		msg.Body = fmt.Sprintf("Hello %s,\n\nWe received your offer to donate \"%s\".\n", str("donor_name"), title)
	case domain.EventDonationStatus:
		msg.Subject = "Donation status updated"
		msg.Body = fmt.Sprintf("Hello %s,\n\nYour donation of \"%s\" is now %s.\n%s\n", str("donor_name"), title, str("status"), str("comments"))
	default:
		msg.Subject = "Library notification"
		msg.Body = eventType
	}
	return msg
}
