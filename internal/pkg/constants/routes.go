package constants

// Static route constants
const (
	PaymentWebhookRoute = "/webhooks/payment"
	APIRoute            = "/api"
	MetricsRoute        = "/metrics"
)
