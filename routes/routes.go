package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/basit/pitchvault-backend/access"
	"github.com/basit/pitchvault-backend/auth"
	"github.com/basit/pitchvault-backend/auth/middleware"
	"github.com/basit/pitchvault-backend/content"
	"github.com/basit/pitchvault-backend/handlers"
	"github.com/basit/pitchvault-backend/initializers"
	"github.com/basit/pitchvault-backend/invite"
	"github.com/basit/pitchvault-backend/pitches"
	"github.com/basit/pitchvault-backend/storage"
	"github.com/basit/pitchvault-backend/views"
)

const sessionName = "pitchvault_session"

// Deps are the collaborators the router is built from. Importer and Sender
// are optional.
type Deps struct {
	Config    initializers.AppConfig
	DB        *gorm.DB
	Logger    *zap.Logger
	Blacklist *auth.Blacklist
	Importer  *storage.Importer
	Sender    invite.Sender
}

func SetupRouter(d Deps) *gin.Engine {
	if d.Config.GinMode != "" {
		gin.SetMode(d.Config.GinMode)
	}
	if d.Blacklist == nil {
		d.Blacklist = auth.NewBlacklist(nil)
	}
	if d.Sender == nil {
		d.Sender = invite.NewLogSender(d.Logger)
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(d.Logger), middleware.Recovery(d.Logger))
	r.SetHTMLTemplate(handlers.Templates())

	origins := d.Config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.APIKeyHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	store := cookie.NewStore([]byte(d.Config.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   d.Config.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	tokens := access.NewTokenStore(d.DB)
	resolver := storage.NewResolver(d.Config.StoragePath)
	pitchSvc := pitches.NewService(d.DB, resolver, d.Logger)
	secret := []byte(d.Config.JWTSecret)

	viewer := handlers.NewViewerHandler(
		access.NewValidator(tokens),
		tokens,
		pitchSvc,
		resolver,
		content.NewResponder(d.Logger),
		d.Logger,
	)
	events := handlers.NewEventHandler(views.NewRecorder(d.DB, d.Logger), d.Logger)
	stats := handlers.NewStatsHandler(pitchSvc, views.NewAggregator(d.DB), d.Logger)
	pitchAPI := handlers.NewPitchHandler(pitchSvc, d.Importer, d.Logger)
	tokenAPI := handlers.NewTokenHandler(tokens, pitchSvc, d.Sender, d.Config.BaseURL, d.Logger)
	authAPI := handlers.NewAuthHandler(auth.NewOwnerStore(d.DB), d.Blacklist, secret, d.Logger)

	owner := &middleware.OwnerAuth{
		Secret:    secret,
		Owners:    auth.NewOwnerStore(d.DB),
		Blacklist: d.Blacklist,
		Logger:    d.Logger,
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Viewer surface: the token is the only credential.
	r.GET("/view/:token", viewer.ViewPage)
	r.GET("/view/:token/content", viewer.Content)
	r.GET("/view/:token/content/*path", viewer.Content)
	r.POST("/view-event", events.Record)

	login := middleware.NewRateLimiter(d.Config.LoginRatePerMinute)
	authGroup := r.Group("/api/auth")
	authGroup.POST("/login", login.Middleware(), authAPI.Login)
	authGroup.POST("/logout", authAPI.Logout)
	authGroup.GET("/me", owner.OwnerRequired(), authAPI.Me)

	r.GET("/preview/:id", owner.OwnerRequired(), viewer.PreviewPage)
	r.GET("/stats/:pitchId", owner.OwnerRequired(), stats.Pitch)

	api := r.Group("/api", owner.OwnerRequired())
	api.GET("/dashboard", stats.Dashboard)
	api.GET("/stats/:pitchId", stats.Pitch)

	api.GET("/preview/:id/content", viewer.PreviewContent)
	api.GET("/preview/:id/content/*path", viewer.PreviewContent)

	api.GET("/pitches", pitchAPI.List)
	api.POST("/pitches", pitchAPI.Create)
	api.GET("/pitches/:id", pitchAPI.Get)
	api.PUT("/pitches/:id", pitchAPI.Update)
	api.DELETE("/pitches/:id", pitchAPI.Delete)
	api.GET("/pitches/:id/files", pitchAPI.Files)
	api.POST("/pitches/:id/files", pitchAPI.Upload)
	api.POST("/pitches/:id/import", pitchAPI.Import)
	api.GET("/pitches/:id/tokens", tokenAPI.ListForPitch)

	api.GET("/tokens", tokenAPI.ListAll)
	api.POST("/tokens", tokenAPI.Create)
	api.POST("/tokens/:id/revoke", tokenAPI.Revoke)
	api.DELETE("/tokens/:id", tokenAPI.Delete)
	api.GET("/tokens/:id/qr", tokenAPI.QR)
	api.POST("/invite", tokenAPI.Invite)

	return r
}
