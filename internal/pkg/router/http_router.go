package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vikrampresence-a11y/storefront/app/controllers"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/constants"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/database"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/jobqueue"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/payment"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	paymentCtrl := controllers.NewPaymentController(
		payment.NewServiceFromDB(database.GetDB()),
		jobqueue.GetManager().GetQueue(),
		controllers.WebhookSecretFromEnv,
	)

	// Payment processor webhooks (no CSRF, signature-verified in controller)
	app.Post(constants.PaymentWebhookRoute, paymentCtrl.HandlePaymentWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
