package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autodiag/config"
	"autodiag/cron"
	"autodiag/database"
	contentRepo "autodiag/database/repository/content"
	deviceRepo "autodiag/database/repository/device"
	diagnosisRepo "autodiag/database/repository/diagnosis"
	leadRepo "autodiag/database/repository/lead"
	messagingRepo "autodiag/database/repository/messaging"
	paymentRepo "autodiag/database/repository/payment"
	profileRepo "autodiag/database/repository/profile"
	userRepo "autodiag/database/repository/user"
	vehicleRepo "autodiag/database/repository/vehicle"
	"autodiag/handlers"
	"autodiag/middleware"
	"autodiag/routes"
	"autodiag/services/broadcast"
	"autodiag/services/content"
	"autodiag/services/diagnosis"
	"autodiag/services/expert"
	"autodiag/services/intelligence"
	"autodiag/services/lead"
	"autodiag/services/messaging"
	"autodiag/services/notification"
	"autodiag/services/payment"
	"autodiag/services/storage"
	"autodiag/services/tasks"
	"autodiag/services/user"
	"autodiag/services/vehicle"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	utils.InitializeLogger()
	logger := utils.GetLogger()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database.InitDB()
	utils.InitRedis()
	utils.StartHealthMonitor(ctx, utils.RedisClients(), database.MongoClient)
	cfg := config.AppConfig

	// repositories.
	users := userRepo.NewMongoUserRepo()
	drivers := profileRepo.NewMongoDriverRepo()
	experts := profileRepo.NewMongoExpertRepo()
	vehicles := vehicleRepo.NewMongoVehicleRepo()
	devices := deviceRepo.NewMongoDeviceRepo()
	diagnoses := diagnosisRepo.NewMongoDiagnosisRepo()
	leads := leadRepo.NewMongoLeadRepo()
	conversations := messagingRepo.NewMongoConversationRepo()
	messages := messagingRepo.NewMongoMessageRepo()
	packages := paymentRepo.NewMongoPackageRepo()
	payments := paymentRepo.NewMongoPaymentRepo()
	subscriptions := paymentRepo.NewMongoSubscriptionRepo()
	learning := contentRepo.NewMongoContentRepo()
	tx := database.NewMongoTransactor(database.MongoClient)

	// background queue and real-time fan out.
	queueOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisQueueDB}
	queue := asynq.NewClient(queueOpt)
	defer queue.Close()
	dispatcher := tasks.NewAsynqDispatcher(queue)
	events := broadcast.NewRedisBroadcaster(utils.GetCacheClient())

	// external providers. Each one is optional in development.
	fetcher := intelligence.NewHTTPFetcher()
	var analyzer intelligence.Analyzer
	if cfg.GeminiAPIKey != "" {
		a, err := intelligence.NewGeminiAnalyzer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, fetcher)
		if err != nil {
			logger.Fatal("main: failed to initialize gemini", zap.Error(err))
		}
		defer a.Close()
		analyzer = a
	}
	var transcriber intelligence.Transcriber
	if cfg.GoogleServiceAccountFile != "" {
		t, err := intelligence.NewSpeechTranscriber(ctx, cfg.GoogleServiceAccountFile, fetcher)
		if err != nil {
			logger.Fatal("main: failed to initialize speech", zap.Error(err))
		}
		defer t.Close()
		transcriber = t
	}
	var pushSender notification.MessageSender
	if cfg.FirebaseCredentialsFile != "" {
		client, err := notification.NewFCMClient(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			logger.Fatal("main: failed to initialize firebase", zap.Error(err))
		}
		pushSender = client
	}
	var media storage.StorageService
	if cfg.CloudinaryURL != "" {
		cld, err := storage.NewCloudinary(cfg.CloudinaryURL)
		if err != nil {
			logger.Fatal("main: failed to initialize cloudinary", zap.Error(err))
		}
		media = storage.NewCloudinaryStorage(cld)
	}

	// services.
	userService := &user.DefaultUserService{
		Users:   users,
		Drivers: drivers,
		Experts: experts,
		Tx:      tx,
		OTP:     utils.NewRedisOTPStore(utils.GetOTPCacheClient(), utils.LogSMSSender{}),
		Tokens:  utils.NewRedisTokenCache(utils.GetAuthCacheClient()),
		Config: user.Config{
			FreeDiagnosesPerDriver: cfg.FreeDiagnosesPerDriver,
			FreeLeadsPerExpert:     cfg.FreeLeadsPerExpert,
			TokenTTL:               config.TokenTTL(),
		},
		Logger: logger,
	}
	expertService := expert.NewDefaultExpertService(experts, users, cfg.MatchRadiusKm)
	diagnosisService := &diagnosis.DefaultDiagnosisService{
		Diagnoses:   diagnoses,
		LeadRepo:    leads,
		Drivers:     drivers,
		Experts:     experts,
		Devices:     devices,
		Vehicles:    vehicles,
		Users:       users,
		Matcher:     expertService,
		Tx:          tx,
		Tasks:       dispatcher,
		Events:      events,
		Analyzer:    analyzer,
		Transcriber: transcriber,
		Config: diagnosis.Config{
			GuestFreeDiagnoses:   cfg.GuestFreeDiagnoses,
			MaxLeadsPerDiagnosis: cfg.MaxLeadsPerDiagnosis,
		},
		Logger: logger,
	}
	leadService := &lead.DefaultLeadService{
		Leads:         leads,
		Diagnoses:     diagnoses,
		Conversations: conversations,
		Events:        events,
		TTL:           config.LeadTTL(),
	}
	messagingService := &messaging.DefaultMessagingService{
		Conversations: conversations,
		Messages:      messages,
		Leads:         leads,
		Events:        events,
	}
	paymentService := &payment.DefaultPaymentService{
		Packages:      packages,
		Payments:      payments,
		Subscriptions: subscriptions,
		Drivers:       drivers,
		Experts:       experts,
		Devices:       devices,
		Gateway:       payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
		Tx:            tx,
	}
	if _, err := paymentService.SeedCatalog(ctx, cfg.PackageCatalogFile); err != nil {
		logger.Fatal("main: failed to seed package catalog", zap.Error(err))
	}
	contentService := &content.DefaultContentService{Repo: learning}
	notificationService, err := notification.NewDefaultNotificationService(users, pushSender)
	if err != nil {
		logger.Fatal("main: failed to initialize notifications", zap.Error(err))
	}

	worker, err := cron.NewWorker(queueOpt, &cron.Handlers{
		Diagnoses: diagnosisService,
		Push:      notificationService,
		Leads:     leadService,
	})
	if err != nil {
		logger.Fatal("main: failed to initialize task worker", zap.Error(err))
	}
	worker.Start()
	defer worker.Shutdown()

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		User:      handlers.NewUserHandler(userService),
		Vehicle:   handlers.NewVehicleHandler(vehicle.NewDefaultVehicleService(vehicles)),
		Diagnosis: handlers.NewDiagnosisHandler(diagnosisService, media),
		Expert:    handlers.NewExpertHandler(expertService),
		Lead:      handlers.NewLeadHandler(leadService),
		Payment:   handlers.NewPaymentHandler(paymentService),
		Messaging: handlers.NewMessagingHandler(messagingService),
		Realtime: handlers.NewRealtimeHandler(events, &broadcast.ChannelAuthorizer{
			Conversations: conversations,
			Diagnoses:     diagnoses,
			Leads:         leads,
		}, diagnosisService),
		Content: handlers.NewContentHandler(contentService),
		Admin: &handlers.AdminHandler{
			Users:    userService,
			Experts:  expertService,
			Payments: paymentService,
			Content:  contentService,
		},
	}

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	limiter := middleware.NewRateLimiter(cfg.MaxRequestsPerMin)
	go limiter.Run(ctx)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	routes.RegisterRoutes(router, handlerBundle, routes.Guards{
		Auth:    userService,
		Limiter: limiter,
		Metrics: middleware.NewHTTPMetrics(prometheus.DefaultRegisterer),
	})

	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar().Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	logger.Sugar().Info("main: server stopped gracefully")
}
