package main

import (
	propertyrepo "shortlets/internal/availability/repository"
	"shortlets/internal/bookings/repository"
	"shortlets/internal/payments/gateway"
	"shortlets/internal/payments/handler"
	"shortlets/internal/payments/service"
	"shortlets/pkg/app"
	"shortlets/pkg/config"
	"shortlets/pkg/lock"
	"shortlets/pkg/notify"
)

const ServiceName = "payments"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	if cfg.PaymentGatewaySecret == "" {
		cfg.Log.Fatal("Payment gateway secret is required")
	}

	cfg.Log.Info("Starting Payments service")
	serverApp := app.NewApplication()
	locker := app.NewLocker(cfg)
	notifier := serverApp.NewNotifier(cfg, ServiceName)

	paymentService := initServices(cfg, locker, notifier)
	serverApp.SetApp(cfg, handler.NewPaymentHandler(paymentService, cfg.PaymentGatewaySecret, cfg.Log))
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

func initServices(cfg *config.Config, locker lock.Locker, notifier notify.Notifier) service.PaymentService {
	reconciler := service.NewReconciler(
		repository.NewMongoBookingRepository(cfg),
		repository.NewMongoApprovalRepository(cfg),
		propertyrepo.NewMongoPropertyRepository(cfg),
		locker,
		notifier,
		cfg,
	)
	gw := gateway.NewHTTPGateway(cfg.PaymentGatewayURL, cfg.PaymentGatewaySecret, cfg.PaymentGatewayTimeout)

	cfg.Log.Info("Payment service initialized", "gateway", cfg.PaymentGatewayURL)
	return service.NewPaymentService(reconciler, gw, cfg)
}
