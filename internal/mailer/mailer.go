// Package mailer sends transactional email over SMTP.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"html/template"

	"github.com/go-faster/errors"
	"gopkg.in/gomail.v2"

	"github.com/xenking/storefront/internal/domain/notify"
)

// Config configures the SMTP connection.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// FrontendURL links the email to the customer's order page.
	FrontendURL string
}

// DialFunc opens an SMTP connection.
type DialFunc func() (gomail.SendCloser, error)

// Mailer implements notify.Sender.
type Mailer struct {
	dial        DialFunc
	from        string
	frontendURL string
}

var _ notify.Sender = (*Mailer)(nil)

// New returns a Mailer dialing the configured SMTP server per message.
func New(cfg Config) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return NewWithDialer(cfg, d.Dial)
}

// NewWithDialer returns a Mailer using dial to obtain connections.
func NewWithDialer(cfg Config, dial DialFunc) *Mailer {
	return &Mailer{
		dial:        dial,
		from:        cfg.From,
		frontendURL: cfg.FrontendURL,
	}
}

// SendOrderConfirmation emails the order summary to the customer. It gives
// up when ctx is done; the SMTP dial itself is bounded by the dialer.
func (m *Mailer) SendOrderConfirmation(ctx context.Context, msg notify.OrderConfirmation) error {
	body, err := renderConfirmation(msg, m.frontendURL)
	if err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.Email)
	gm.SetHeader("Subject", confirmationSubject(msg.OrderNumber))
	gm.SetBody("text/html", body)

	return m.send(ctx, gm)
}

func (m *Mailer) send(ctx context.Context, gm *gomail.Message) error {
	done := make(chan error, 1)
	go func() {
		sc, err := m.dial()
		if err != nil {
			done <- errors.Wrap(err, "dial smtp")
			return
		}
		defer func() { _ = sc.Close() }()
		if err := gomail.Send(sc, gm); err != nil {
			done <- errors.Wrap(err, "send mail")
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func confirmationSubject(number string) string {
	return "Order Confirmed - " + number
}

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <h2>Thank you for your order!</h2>
  <p>Your order <strong>{{.Number}}</strong> has been placed.</p>
  <table cellpadding="4">
    <tr><td>Subtotal</td><td align="right">{{.Subtotal}}</td></tr>
    {{- if .HasDiscount}}
    <tr><td>Discount</td><td align="right">-{{.Discount}}</td></tr>
    {{- end}}
    <tr><td>Tax</td><td align="right">{{.Tax}}</td></tr>
    <tr><td>Shipping</td><td align="right">{{if .FreeShipping}}FREE{{else}}{{.Shipping}}{{end}}</td></tr>
    <tr><td><strong>Total</strong></td><td align="right"><strong>{{.Total}}</strong></td></tr>
  </table>
  {{- if .OrderURL}}
  <p><a href="{{.OrderURL}}">View your order</a></p>
  {{- end}}
</body>
</html>
`))

type confirmationView struct {
	Number       string
	Subtotal     string
	Discount     string
	Tax          string
	Shipping     string
	Total        string
	HasDiscount  bool
	FreeShipping bool
	OrderURL     string
}

func renderConfirmation(msg notify.OrderConfirmation, frontendURL string) (string, error) {
	view := confirmationView{
		Number:       msg.OrderNumber,
		Subtotal:     msg.Subtotal.StringFixed(2),
		Discount:     msg.Discount.StringFixed(2),
		Tax:          msg.Tax.StringFixed(2),
		Shipping:     msg.Shipping.StringFixed(2),
		Total:        msg.Total.StringFixed(2),
		HasDiscount:  msg.Discount.IsPositive(),
		FreeShipping: msg.Shipping.IsZero(),
	}
	if frontendURL != "" {
		view.OrderURL = frontendURL + "/orders/" + msg.OrderNumber
	}

	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, view); err != nil {
		return "", errors.Wrap(err, "render confirmation")
	}
	return buf.String(), nil
}
