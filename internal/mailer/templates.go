package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// subjects per email type.
var subjects = map[string]string{
	TypePaymentConfirmation:   "Payment received — welcome to %s",
	TypePaymentFailed:         "Payment failed for your %s subscription",
	TypeSubscriptionCancelled: "Your %s subscription has been cancelled",
}

const paymentEmailTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, Segoe UI, sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">{{.Heading}}</h2>
  <p>Hi {{.Name}},</p>
  <p>{{.Body}}</p>
  {{if .Amount}}<p style="font-size: 20px; font-weight: 600;">{{.Amount}}</p>{{end}}
  {{if .InvoiceURL}}<p><a href="{{.InvoiceURL}}">View invoice</a></p>{{end}}
  {{if .ReceiptURL}}<p><a href="{{.ReceiptURL}}">View receipt</a></p>{{end}}
  {{if .PortalURL}}<p><a href="{{.PortalURL}}">Manage your subscription</a></p>{{end}}
  <p style="color: #6b7280; font-size: 13px; margin-top: 32px;">— The AppBoost team</p>
</body>
</html>`

var paymentTmpl = template.Must(template.New("payment").Parse(paymentEmailTemplate))

type templateData struct {
	Heading    string
	Name       string
	Body       string
	Amount     string
	InvoiceURL string
	ReceiptURL string
	PortalURL  string
}

// renderSubject fills the per-type subject line with the plan name.
func renderSubject(email *PaymentEmail) string {
	plan := email.PlanName
	if plan == "" {
		plan = "AppBoost"
	}
	return fmt.Sprintf(subjects[email.Type], plan)
}

// renderHTML produces the email body for the given message.
func renderHTML(email *PaymentEmail) (string, error) {
	data := templateData{
		Name:       firstNonEmpty(email.Name, "there"),
		InvoiceURL: email.InvoiceURL,
		ReceiptURL: email.ReceiptURL,
		PortalURL:  email.PortalURL,
	}
	if email.AmountCents > 0 {
		data.Amount = fmt.Sprintf("$%.2f", float64(email.AmountCents)/100)
	}

	switch email.Type {
	case TypePaymentConfirmation:
		data.Heading = "Payment confirmed"
		data.Body = fmt.Sprintf("Thanks for subscribing to %s. Your payment went through and your plan is now active.", email.PlanName)
	case TypePaymentFailed:
		data.Heading = "Payment failed"
		data.Body = fmt.Sprintf("We couldn't process the payment for your %s subscription. Please update your payment method to keep your plan active.", email.PlanName)
	case TypeSubscriptionCancelled:
		data.Heading = "Subscription cancelled"
		data.Body = fmt.Sprintf("Your %s subscription has been cancelled. You can resubscribe at any time.", email.PlanName)
	default:
		return "", fmt.Errorf("unknown email type %q", email.Type)
	}

	var buf bytes.Buffer
	if err := paymentTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}
	return buf.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
