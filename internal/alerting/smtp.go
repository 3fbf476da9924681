package alerting

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SMTPOptions configure the mail relay used for text and email alerts.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
	Timeout  time.Duration
}

// SMTPNotifier sends alerts through an SMTP relay, typically an
// email-to-SMS gateway.
type SMTPNotifier struct {
	opts   SMTPOptions
	logger zerolog.Logger
}

// NewSMTPNotifier builds an SMTP notifier.
func NewSMTPNotifier(opts SMTPOptions, logger zerolog.Logger) *SMTPNotifier {
	if opts.Port == 0 {
		opts.Port = 25
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	return &SMTPNotifier{opts: opts, logger: logger.With().Str("component", "alert_smtp").Logger()}
}

// Send delivers msg to every recipient in one transaction.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return fmt.Errorf("%w: no recipients", ErrSend)
	}

	addr := net.JoinHostPort(n.opts.Host, strconv.Itoa(n.opts.Port))
	dialer := net.Dialer{Timeout: n.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrConnection, addr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(n.opts.Timeout))

	client, err := smtp.NewClient(conn, n.opts.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: greet %s: %v", ErrConnection, addr, err)
	}
	defer client.Close()

	if n.opts.Username != "" {
		auth := smtp.PlainAuth("", n.opts.Username, n.opts.Password, n.opts.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("%w: auth: %v", ErrSend, err)
		}
	}

	if err := n.transact(client, msg); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return fmt.Errorf("%w: %v", ErrConnection, err)
		}
		return fmt.Errorf("%w: %v", ErrSend, err)
	}

	n.logger.Info().Int("recipients", len(msg.Recipients)).Str("subject", msg.Subject).Msg("alert sent (smtp)")
	return client.Quit()
}

func (n *SMTPNotifier) transact(client *smtp.Client, msg Message) error {
	if err := client.Mail(n.opts.Sender); err != nil {
		return err
	}
	for _, rcpt := range msg.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(renderMail(n.opts.Sender, msg)); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func renderMail(sender string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", sender)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

var _ Notifier = (*SMTPNotifier)(nil)
