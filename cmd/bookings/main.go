package main

import (
	approvalhandler "shortlets/internal/approvals/handler"
	approvalservice "shortlets/internal/approvals/service"
	availabilityhandler "shortlets/internal/availability/handler"
	propertyrepo "shortlets/internal/availability/repository"
	availabilityservice "shortlets/internal/availability/service"
	"shortlets/internal/bookings/handler"
	"shortlets/internal/bookings/repository"
	"shortlets/internal/bookings/service"
	"shortlets/internal/bookings/validator"
	"shortlets/internal/checkout"
	"shortlets/internal/conflicts"
	"shortlets/pkg/app"
	"shortlets/pkg/config"
	"shortlets/pkg/contracts"
	"shortlets/pkg/lock"
	"shortlets/pkg/notify"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Bookings service")
	serverApp := app.NewApplication()
	locker := app.NewLocker(cfg)
	notifier := serverApp.NewNotifier(cfg, ServiceName)

	serverApp.SetApp(cfg, initHandlers(cfg, locker, notifier)...)
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

func initHandlers(cfg *config.Config, locker lock.Locker, notifier notify.Notifier) []contracts.Handler {
	bookingValidator := validator.NewBookingValidator(cfg.Log)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	approvalRepo := repository.NewMongoApprovalRepository(cfg)
	propertyRepo := propertyrepo.NewMongoPropertyRepository(cfg)
	detector := conflicts.NewDetector(bookingRepo, approvalRepo)
	window := checkout.NewWindow(cfg.CheckoutSigningSecret)

	bookingService := service.NewBookingService(
		bookingRepo,
		approvalRepo,
		propertyRepo,
		detector,
		window,
		locker,
		notifier,
		bookingValidator,
		cfg,
	)
	approvalService := approvalservice.NewApprovalService(
		bookingRepo,
		approvalRepo,
		propertyRepo,
		detector,
		window,
		locker,
		notifier,
		bookingValidator,
		cfg,
	)
	availabilityService := availabilityservice.NewAvailabilityService(
		propertyRepo,
		bookingRepo,
		window,
		locker,
		cfg,
	)

	cfg.Log.Info("Booking services initialized", "database", cfg.MongoDatabaseName)
	return []contracts.Handler{
		handler.NewBookingHandler(bookingService, cfg.Log),
		approvalhandler.NewApprovalHandler(approvalService, bookingValidator, cfg.Log),
		availabilityhandler.NewAvailabilityHandler(availabilityService, cfg.Log),
	}
}
