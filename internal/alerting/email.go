package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// EmailOptions parameterise the SMTP notifier.
type EmailOptions struct {
	Host          string
	Port          int
	Username      string
	Password      string
	SSL           bool
	Timeout       time.Duration
	FromName      string
	FromAddress   string
	ToAddress     string
	RecipientName string
	BuySubject    string
	SellSubject   string
	BuyTemplate   string
	SellTemplate  string
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailNotifier sends HTML alert emails over SMTP.
type EmailNotifier struct {
	opts   EmailOptions
	sender mailSender
	logger zerolog.Logger
}

// NewEmailNotifier builds an SMTP client from opts. Templates must already be
// loaded (see LoadTemplate); empty ones fall back to the defaults.
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) (*EmailNotifier, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	clientOpts := []mail.Option{mail.WithTimeout(timeout)}
	if opts.SSL {
		clientOpts = append(clientOpts, mail.WithSSL())
	} else {
		clientOpts = append(clientOpts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if opts.Port > 0 {
		clientOpts = append(clientOpts, mail.WithPort(opts.Port))
	}
	if opts.Username != "" && opts.Password != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}

	client, err := mail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return newEmailNotifier(opts, client, logger), nil
}

func newEmailNotifier(opts EmailOptions, sender mailSender, logger zerolog.Logger) *EmailNotifier {
	if opts.BuySubject == "" {
		opts.BuySubject = "Buy a stock!"
	}
	if opts.SellSubject == "" {
		opts.SellSubject = "Sell a stock!"
	}
	if opts.BuyTemplate == "" {
		opts.BuyTemplate = DefaultTemplate(Buy)
	}
	if opts.SellTemplate == "" {
		opts.SellTemplate = DefaultTemplate(Sell)
	}
	return &EmailNotifier{
		opts:   opts,
		sender: sender,
		logger: logger.With().Str("component", "alert_email").Logger(),
	}
}

// Notify composes and sends one message.
func (n *EmailNotifier) Notify(ctx context.Context, event Event) error {
	msg, err := n.compose(event)
	if err != nil {
		return &SinkError{Channel: n.Channel(), Err: err}
	}

	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return &SinkError{Channel: n.Channel(), Err: err}
	}

	n.logger.Info().
		Str("instrument", event.Instrument).
		Str("direction", string(event.Direction)).
		Str("to", n.opts.ToAddress).
		Msg("alert email sent")
	return nil
}

func (n *EmailNotifier) compose(event Event) (*mail.Msg, error) {
	subject, template := n.opts.SellSubject, n.opts.SellTemplate
	if event.Direction == Buy {
		subject, template = n.opts.BuySubject, n.opts.BuyTemplate
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(n.opts.FromName, n.opts.FromAddress); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.AddToFormat(n.opts.RecipientName, n.opts.ToAddress); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, ApplySubstitutions(template, n.opts.RecipientName, event))
	return msg, nil
}

// Channel implements Named.
func (n *EmailNotifier) Channel() string { return "email" }

var _ Notifier = (*EmailNotifier)(nil)
