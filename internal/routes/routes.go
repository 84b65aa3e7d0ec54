package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"cmsapi/internal/authz"
	"cmsapi/internal/handlers"
	"cmsapi/internal/middleware"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Users      *handlers.UserHandler
	Posts      *handlers.PostHandler
	Categories *handlers.CategoryHandler
	Gallery    *handlers.GalleryHandler
	Health     *handlers.HealthHandler
}

type Options struct {
	Tokens            middleware.AccessParser
	Users             middleware.UserLoader
	Maintenance       func() bool
	AllowRegistration func() bool
	MediaRoot         string
	Log               *zap.Logger
}

// Paths that stay reachable in maintenance mode so admins can still sign in
// and operate.
var maintenanceExempt = []string{
	"/api/admin/",
	"/api/login",
	"/api/token/refresh",
	"/metrics",
	"/swagger/",
}

func SetupRoutes(r *gin.Engine, h Handlers, opts Options) *gin.Engine {
	if opts.Maintenance == nil {
		opts.Maintenance = func() bool { return false }
	}
	if opts.AllowRegistration == nil {
		opts.AllowRegistration = func() bool { return true }
	}

	r.Use(
		middleware.RequestLogger(opts.Log),
		middleware.Metrics(),
		middleware.CORS(),
	)

	// ---- system
	r.GET("/health-check", h.Health.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if opts.MediaRoot != "" {
		r.Static("/media", opts.MediaRoot)
	}

	api := r.Group("/api",
		middleware.Maintenance(opts.Maintenance, maintenanceExempt...),
		middleware.LoadUser(opts.Tokens, opts.Users),
	)

	// ---- public
	api.POST("/register", middleware.RegistrationGate(opts.AllowRegistration), h.Auth.Register)
	api.POST("/verify-otp", h.Auth.VerifyOTP)
	api.POST("/resend-otp", h.Auth.ResendOTP)
	api.POST("/login", h.Auth.Login)
	api.POST("/forget-password", h.Auth.ForgetPassword)
	api.POST("/reset-password", h.Auth.ResetPassword)
	api.POST("/token/refresh", h.Auth.RefreshToken)

	api.GET("/posts", h.Posts.List)
	api.GET("/posts/:slug", h.Posts.Get)
	api.GET("/categories", h.Categories.List)
	api.GET("/categories/:slug", h.Categories.Get)
	api.GET("/file-gallery", h.Gallery.List)
	api.GET("/file-gallery/:id", h.Gallery.Get)

	// ---- protected
	auth := api.Group("", middleware.RequireUser())

	auth.GET("/me", h.Auth.Me)

	profile := auth.Group("/profile")
	{
		profile.GET("", h.Users.List)
		profile.GET("/:slug", h.Users.Get)
		profile.PUT("/:slug", h.Users.Update)
		profile.POST("/:slug/picture", h.Users.UploadPicture)
		profile.DELETE("/:slug", h.Users.Delete)
	}

	posts := auth.Group("/posts")
	{
		posts.POST("", middleware.Require(authz.ActionCreatePost), h.Posts.Create)
		posts.PUT("/:slug", h.Posts.Update)
		posts.POST("/:slug/publish", h.Posts.Publish)
		posts.POST("/:slug/unpublish", h.Posts.Unpublish)
		posts.DELETE("/:slug", h.Posts.Delete)
		posts.POST("/:slug/restore", h.Posts.Restore)
	}

	categories := auth.Group("/categories", middleware.Require(authz.ActionManageCategory))
	{
		categories.POST("", h.Categories.Create)
		categories.PUT("/:slug", h.Categories.Update)
		categories.DELETE("/:slug", h.Categories.Delete)
	}

	gallery := auth.Group("/file-gallery")
	{
		gallery.POST("", middleware.Require(authz.ActionUploadFile), h.Gallery.Upload)
		gallery.PUT("/:id", h.Gallery.Update)
		gallery.DELETE("/:id", h.Gallery.Delete)
	}

	admin := auth.Group("/admin/users", middleware.Require(authz.ActionListAccounts))
	{
		admin.GET("", h.Users.AdminList)
		admin.POST("/:slug/lock", h.Users.Lock)
		admin.POST("/:slug/unlock", h.Users.Unlock)
		admin.POST("/:slug/restore", h.Users.Restore)
	}

	return r
}
