// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carryhub/internal/http/handlers"
	"carryhub/internal/http/middleware"
	"carryhub/internal/infra"
	"carryhub/internal/modules/carryrequest"
	"carryhub/internal/modules/consignment"
	"carryhub/internal/modules/fare"
	"carryhub/internal/modules/handover"
	"carryhub/internal/modules/kyc"
	"carryhub/internal/modules/payment"
	"carryhub/internal/modules/payout"
	"carryhub/internal/modules/travel"
	"carryhub/internal/modules/user"
	"carryhub/internal/modules/webhook"
)

type RouterDeps struct {
	Users         *user.Service
	Fares         *fare.Service
	Consignments  *consignment.Service
	Travels       *travel.Service
	CarryRequests *carryrequest.Service
	Payments      *payment.Service
	Handovers     *handover.Service
	KYC           *kyc.Service
	Payouts       *payout.Service
	Webhooks      *webhook.Reconciler
	GatewayKeyID  string
}

func NewRouter(d RouterDeps, verifier infra.TokenVerifier) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	webhooks := handlers.NewWebhookHandler(d.Webhooks)
	kycHandler := handlers.NewKYCHandler(d.KYC)
	r.POST("/webhooks/gateway", webhooks.Gateway)
	r.POST("/webhooks/gateway/refunds", webhooks.Gateway)
	r.POST("/webhooks/kyc", kycHandler.Callback)

	api := r.Group("/api", middleware.Auth(verifier))
	admin := api.Group("/admin", middleware.AdminOnly())

	users := handlers.NewUserHandler(d.Users)
	api.POST("/users/me", users.Register)
	api.GET("/users/me", users.Me)

	fares := handlers.NewFareHandler(d.Fares)
	api.GET("/fares/quote", fares.Quote)
	admin.PUT("/fare-config", fares.UpdateConfig)

	consignments := handlers.NewConsignmentHandler(d.Consignments, d.CarryRequests)
	api.POST("/consignments", consignments.Create)
	api.GET("/consignments/:id", consignments.Get)
	api.POST("/consignments/:id/cancel", consignments.Cancel)
	api.GET("/consignments/:id/carry-requests", consignments.ListRequests)
	admin.POST("/consignments/:id/cancel", consignments.Cancel)

	travels := handlers.NewTravelHandler(d.Travels)
	api.POST("/travels", travels.Create)
	api.GET("/travels/:id", travels.Get)
	api.POST("/travels/:id/cancel", travels.Cancel)

	requests := handlers.NewCarryRequestHandler(d.CarryRequests)
	api.POST("/carry-requests/sender", requests.CreateBySender)
	api.POST("/carry-requests/traveller", requests.CreateByTraveller)
	api.GET("/carry-requests/:id", requests.Get)
	api.POST("/carry-requests/:id/accept", requests.Accept)
	api.POST("/carry-requests/:id/reject", requests.Reject)

	payments := handlers.NewPaymentHandler(d.Payments, d.GatewayKeyID)
	api.POST("/payments/initiate", payments.Initiate)
	api.POST("/payments/capture", payments.Capture)
	api.GET("/payments/:id", payments.Get)

	handovers := handlers.NewHandoverHandler(d.Handovers)
	api.GET("/travel-consignments/:id", handovers.Get)
	api.POST("/travel-consignments/:id/pickup", handovers.Pickup)
	api.POST("/travel-consignments/:id/deliver", handovers.Deliver)
	admin.POST("/travel-consignments/:id/cancel", handovers.Cancel)

	api.GET("/kyc", kycHandler.Status)
	api.POST("/kyc/:type", kycHandler.Submit)

	payouts := handlers.NewPayoutHandler(d.Payouts)
	api.POST("/payout-accounts", payouts.RegisterAccount)
	admin.POST("/payouts", payouts.Request)

	return r
}
