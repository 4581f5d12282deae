// README: Entry point; loads config, wires services, starts HTTP server and background monitors.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carryhub/internal/config"
	"carryhub/internal/gateway"
	httptransport "carryhub/internal/http"
	"carryhub/internal/infra"
	"carryhub/internal/maps"
	"carryhub/internal/modules/carryrequest"
	"carryhub/internal/modules/consignment"
	"carryhub/internal/modules/earning"
	"carryhub/internal/modules/fare"
	"carryhub/internal/modules/handover"
	"carryhub/internal/modules/kyc"
	"carryhub/internal/modules/payment"
	"carryhub/internal/modules/payout"
	"carryhub/internal/modules/travel"
	"carryhub/internal/modules/user"
	"carryhub/internal/modules/webhook"
	"carryhub/internal/notify"
	"carryhub/internal/otp"
)

const lockWait = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("CARRY_FIREBASE_PROJECT_ID is required")
	}
	if cfg.Gateway.WebhookSecret == "" || cfg.Gateway.KeySecret == "" {
		log.Fatal("CARRY_GATEWAY_KEY_SECRET and CARRY_GATEWAY_WEBHOOK_SECRET are required")
	}
	app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, app)
	if err != nil {
		log.Fatalf("firebase auth: %v", err)
	}
	messaging, err := infra.NewMessagingClient(ctx, app)
	if err != nil {
		log.Fatalf("firebase messaging: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()
	tx := infra.NewTxManager(dbPool)

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	distance, err := maps.NewDistanceService(cfg.Maps.APIKey)
	if err != nil {
		log.Fatalf("maps init: %v", err)
	}
	gw := gateway.NewClient(cfg.Gateway)

	userStore := user.NewStore(dbPool)
	userSvc := user.NewService(userStore)

	notifiers := notify.Fanout{notify.NewFCM(messaging, userStore)}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
	}

	var sms otp.Sender = otp.LogSender{}
	if cfg.SMS.BaseURL != "" {
		sms = otp.NewHTTPSender(cfg.SMS.BaseURL, cfg.SMS.APIKey)
	} else {
		log.Printf("[main] CARRY_SMS_BASE_URL not set; OTPs are logged, not sent")
	}
	otpIssuer := otp.NewIssuer(otp.NewRedisRecords(redisClient), sms)

	fareStore := fare.NewStore(dbPool)
	fareSvc := fare.NewService(fareStore)

	consignmentStore := consignment.NewStore(dbPool)
	travelStore := travel.NewStore(dbPool)
	requestStore := carryrequest.NewStore(dbPool)
	paymentStore := payment.NewStore(dbPool)
	handoverStore := handover.NewStore(dbPool)
	earningStore := earning.NewStore(dbPool)
	payoutStore := payout.NewStore(dbPool)

	requestSvc := carryrequest.NewService(carryrequest.Deps{
		Repo:         requestStore,
		Tx:           tx,
		Consignments: consignmentStore,
		Travels:      travelStore,
		Payments:     paymentStore,
		Notifier:     notifiers,
	})
	handoverSvc := handover.NewService(handover.Deps{
		Repo:         handoverStore,
		Tx:           tx,
		Consignments: consignmentStore,
		Earnings:     earningStore,
		Notifier:     notifiers,
	})
	consignmentSvc := consignment.NewService(consignment.Deps{
		Repo:      consignmentStore,
		Tx:        tx,
		Distance:  distance,
		Fares:     fareSvc,
		Requests:  requestSvc,
		Payments:  paymentStore,
		Handovers: handoverSvc,
	})
	travelSvc := travel.NewService(travelStore, tx, requestSvc)
	paymentSvc := payment.NewService(payment.Deps{
		Repo:      paymentStore,
		Tx:        tx,
		Requests:  requestStore,
		Gateway:   gw,
		Locker:    infra.NewRedisLocker(redisClient, lockWait),
		KeySecret: cfg.Gateway.KeySecret,
		Config:    cfg.Payment,
	})
	payoutSvc := payout.NewService(payoutStore, earningStore, gw)
	kycSvc := kyc.NewService(kyc.Deps{
		Repo:         kyc.NewStore(dbPool),
		Tx:           tx,
		Provider:     kyc.NewHTTPProvider(cfg.KYC),
		Notifier:     notifiers,
		WebhookToken: cfg.KYC.WebhookToken,
	})
	reconciler := webhook.NewReconciler(webhook.Deps{
		Tx:           tx,
		Payments:     paymentStore,
		Requests:     requestStore,
		Consignments: consignmentStore,
		Handovers:    handoverStore,
		Users:        userStore,
		Fares:        fareSvc,
		Payouts:      payoutStore,
		Earnings:     earningStore,
		OTP:          otpIssuer,
		Notifier:     notifiers,
		Secret:       cfg.Gateway.WebhookSecret,
	})

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Users:         userSvc,
		Fares:         fareSvc,
		Consignments:  consignmentSvc,
		Travels:       travelSvc,
		CarryRequests: requestSvc,
		Payments:      paymentSvc,
		Handovers:     handoverSvc,
		KYC:           kycSvc,
		Payouts:       payoutSvc,
		Webhooks:      reconciler,
		GatewayKeyID:  cfg.Gateway.KeyID,
	}, verifier)

	tick := time.Duration(cfg.Monitor.TickSeconds) * time.Second
	go requestSvc.RunExpiryMonitor(ctx, tick)
	go paymentSvc.RunExpiryMonitor(ctx, tick)

	if err := httptransport.NewServer(cfg.HTTP.Addr, router).Run(ctx); err != nil {
		log.Fatal(err)
	}
}
