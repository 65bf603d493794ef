package routes

import (
	"net/http"
	"time"

	"autodiag/handlers"
	"autodiag/middleware"
	"autodiag/models"
	"autodiag/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Guards are the middleware chains route groups are built from.
type Guards struct {
	Auth    middleware.Authenticator
	Limiter *middleware.RateLimiter
	Metrics *middleware.HTTPMetrics
}

// RegisterRoutes wires every endpoint onto r.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, g Guards) {
	r.MaxMultipartMemory = handlers.MaxMultipartMemory
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Authorization", "Content-Type",
			middleware.HeaderDeviceID, middleware.HeaderDeviceName,
			middleware.HeaderDevicePlatform, middleware.HeaderDeviceModel,
		},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	if g.Metrics != nil {
		r.Use(g.Metrics.Middleware())
	}

	r.GET("/health", utils.HealthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(func(c *gin.Context) {
		utils.JSONError(c, http.StatusNotFound, "not_found", "route not found")
	})

	api := r.Group("/api/v1")
	if g.Limiter != nil {
		api.Use(g.Limiter.Middleware())
	}

	// Signed by the gateway, no device headers.
	api.POST("/payments/webhook", hb.Payment.Webhook)

	device := api.Group("", middleware.DeviceMiddleware())
	registerPublicRoutes(device, hb)
	registerGuestRoutes(device.Group("/guest"), hb)

	authed := device.Group("", middleware.JWTAuthMiddleware(g.Auth))
	registerAccountRoutes(authed, hb)
	registerDriverRoutes(authed.Group("", middleware.RequireRole(models.RoleDriver)), hb)
	registerExpertRoutes(authed.Group("", middleware.RequireRole(models.RoleExpert)), hb)
	registerAdminRoutes(authed.Group("/admin", middleware.RequireRole(models.RoleAdmin)), hb)
}

func registerPublicRoutes(rg *gin.RouterGroup, hb *handlers.HandlerBundle) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", hb.User.Register)
		auth.POST("/login", hb.User.Login)
		auth.POST("/otp/request", hb.User.RequestOTP)
		auth.POST("/otp/verify", hb.User.VerifyOTP)
	}

	rg.GET("/experts", hb.Expert.List)
	rg.GET("/experts/nearby", hb.Expert.Nearby)
	rg.GET("/experts/:id", hb.Expert.Get)
	rg.GET("/packages", hb.Payment.ListPackages)

	content := rg.Group("/content")
	{
		content.GET("/articles", hb.Content.ListArticles)
		content.GET("/articles/:slug", hb.Content.GetArticle)
		content.GET("/road-signs", hb.Content.ListRoadSigns)
		content.GET("/videos", hb.Content.ListVideos)
		content.GET("/quiz", hb.Content.DrawQuiz)
	}
}

func registerGuestRoutes(rg *gin.RouterGroup, hb *handlers.HandlerBundle) {
	rg.POST("/diagnoses", hb.Diagnosis.CreateGuest)
	rg.GET("/diagnoses/:id", hb.Diagnosis.GetGuest)
	rg.GET("/quota", hb.Diagnosis.GuestQuota)
	rg.POST("/payments/checkout", hb.Payment.GuestCheckout)
	rg.GET("/realtime/stream", hb.Realtime.GuestStream)
}

// registerAccountRoutes holds routes open to every signed-in role.
func registerAccountRoutes(rg *gin.RouterGroup, hb *handlers.HandlerBundle) {
	rg.POST("/auth/logout", hb.User.Logout)
	rg.GET("/me", hb.User.Me)
	rg.PUT("/me/fcm-token", hb.User.UpdateFCMToken)
	rg.GET("/settings", hb.User.GetSettings)
	rg.PUT("/settings", hb.User.UpdateSettings)

	rg.POST("/payments/checkout", middleware.RequireRole(models.RoleDriver, models.RoleExpert), hb.Payment.Checkout)
	rg.GET("/payments", hb.Payment.ListPayments)
	rg.GET("/subscriptions", hb.Payment.ListSubscriptions)

	conv := rg.Group("/conversations", middleware.RequireRole(models.RoleDriver, models.RoleExpert))
	{
		conv.GET("", hb.Messaging.ListConversations)
		conv.POST("", hb.Messaging.Open)
		conv.GET("/:id/messages", hb.Messaging.ListMessages)
		conv.POST("/:id/messages", hb.Messaging.Send)
		conv.POST("/:id/read", hb.Messaging.MarkRead)
		conv.POST("/:id/typing", hb.Messaging.Typing)
	}
	rg.GET("/realtime/stream", hb.Realtime.Stream)

	rg.POST("/content/quiz/attempts", hb.Content.SubmitAttempt)
	rg.GET("/content/quiz/attempts", hb.Content.ListAttempts)
}

func registerDriverRoutes(rg *gin.RouterGroup, hb *handlers.HandlerBundle) {
	vehicles := rg.Group("/vehicles")
	{
		vehicles.GET("", hb.Vehicle.List)
		vehicles.POST("", hb.Vehicle.Create)
		vehicles.GET("/:id", hb.Vehicle.Get)
		vehicles.PUT("/:id", hb.Vehicle.Update)
		vehicles.DELETE("/:id", hb.Vehicle.Delete)
	}

	diagnoses := rg.Group("/diagnoses")
	{
		diagnoses.POST("", hb.Diagnosis.Create)
		diagnoses.GET("", hb.Diagnosis.List)
		diagnoses.GET("/:id", hb.Diagnosis.Get)
		diagnoses.DELETE("/:id", hb.Diagnosis.Delete)
		diagnoses.GET("/:id/leads", hb.Diagnosis.Leads)
	}
	rg.GET("/quota", hb.Diagnosis.Quota)
}

func registerExpertRoutes(rg *gin.RouterGroup, hb *handlers.HandlerBundle) {
	rg.PUT("/experts/me", hb.Expert.UpdateMine)

	leads := rg.Group("/leads")
	{
		leads.GET("", hb.Lead.List)
		leads.GET("/:id", hb.Lead.Get)
		leads.POST("/:id/contact", hb.Lead.Contact)
		leads.POST("/:id/convert", hb.Lead.Convert)
		leads.POST("/:id/close", hb.Lead.Close)
	}
}

func registerAdminRoutes(rg *gin.RouterGroup, hb *handlers.HandlerBundle) {
	rg.GET("/users", hb.Admin.ListUsers)
	rg.PUT("/experts/:id/verify", hb.Admin.VerifyExpert)
	rg.POST("/packages", hb.Admin.UpsertPackage)
	rg.POST("/content/articles", hb.Admin.UpsertArticle)
	rg.POST("/content/road-signs", hb.Admin.UpsertRoadSign)
	rg.POST("/content/videos", hb.Admin.UpsertVideo)
	rg.POST("/content/quiz", hb.Admin.UpsertQuestion)
}
