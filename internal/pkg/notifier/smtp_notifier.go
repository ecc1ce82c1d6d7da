package notifier

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	"github.com/vikrampresence-a11y/storefront/internal/pkg/env"
)

// SMTPNotifier delivers asset links by email. It is constructed once and
// injected; a fake Notifier replaces it in tests.
type SMTPNotifier struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

// NewSMTPNotifierFromEnv builds the production mail notifier from env config.
func NewSMTPNotifierFromEnv() *SMTPNotifier {
	sender := env.GetEnv("SMTP_SENDER", "")
	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	return &SMTPNotifier{
		Host:     env.GetEnv("SMTP_HOST", ""),
		Port:     env.GetEnv("SMTP_PORT", "587"),
		Username: env.GetEnv("SMTP_USERNAME", ""),
		Password: env.GetEnv("SMTP_PASSWORD", ""),
		Sender:   sender,
	}
}

// Send emails the purchased asset link to the buyer.
func (n *SMTPNotifier) Send(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if n.Username != "" && n.Password != "" {
		auth = smtp.PlainAuth("", n.Username, n.Password, n.Host)
	}

	addr := fmt.Sprintf("%s:%s", n.Host, n.Port)
	subject := fmt.Sprintf("Your purchase: %s", d.ProductTitle)
	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", n.Sender, d.To, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			deliveryBody(d),
	)

	err := smtp.SendMail(addr, auth, n.Sender, []string{d.To}, msg)
	if err != nil {
		log.Printf("SMTP send error for payment %s: %v", d.PaymentID, err)
	} else {
		log.Printf("Asset email sent to %s via %s (payment %s)", d.To, addr, d.PaymentID)
	}
	return err
}

func deliveryBody(d Delivery) string {
	return fmt.Sprintf(
		"<p>Thank you for your purchase of <strong>%s</strong>.</p>"+
			"<p>Download your copy here: <a href=%q>%s</a></p>"+
			"<p>Payment reference: %s &middot; Amount paid: %.2f</p>",
		d.ProductTitle, d.AssetLink, d.AssetLink, d.PaymentID, d.AmountPaid,
	)
}
