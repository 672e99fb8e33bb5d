package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/wide/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services are the application services served over HTTP.
type Services struct {
	Auth         *service.AuthService
	Credentials  *service.CredentialService
	Integrity    *service.IntegrityService
	History      *service.HistoryService
	RelyingParty *service.RelyingPartyService
}

// RouterConfig controls cross-cutting HTTP behaviour.
type RouterConfig struct {
	Cookie       CookieConfig
	MetricsPath  string // exposes Prometheus metrics when non-empty
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(services Services, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = "session_id"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	router := gin.New()
	router.Use(gin.Recovery(), Observe(logger), LimitBody(cfg.MaxBodyBytes))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.MetricsPath != "" {
		router.GET(cfg.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	// Create handlers
	auth := NewAuthHandlers(services.Auth, cfg.Cookie)
	storage := NewStorageHandlers(services.Credentials, services.Integrity)
	history := NewHistoryHandlers(services.History)
	integrity := NewIntegrityHandlers(services.Integrity)
	relyingParty := NewRelyingPartyHandlers(services.RelyingParty)

	sessions := SessionMiddleware(services.Auth, cfg.Cookie.Name)
	requireSession := RequireSession()

	siwe := router.Group("/siwe")
	{
		siwe.GET("/generate_signin", auth.GenerateSignIn)
		siwe.GET("/generate_signup", auth.GenerateSignUp)
		siwe.POST("/verify_signin", auth.VerifySignIn)
		siwe.DELETE("/signout", sessions, requireSession, auth.SignOut)
		siwe.DELETE("/tos", sessions, requireSession, auth.RevokeTerms)
	}

	storageRoutes := router.Group("/storage/user/:accountAddress")
	storageRoutes.Use(sessions, requireSession)
	{
		storageRoutes.GET("/issued-credentials", storage.IssuedCredentials)
		storageRoutes.POST("/credential", storage.IssueCredential)
		storageRoutes.GET("/credential/:id", storage.GetCredential)
		storageRoutes.PUT("/credential/:id", storage.UpdateCredential)
		storageRoutes.DELETE("/credential/:id", storage.DeleteCredential)
	}

	historyRoutes := router.Group("/history")
	historyRoutes.Use(sessions, requireSession)
	{
		historyRoutes.GET("/generate_message", history.GenerateMessage)
		historyRoutes.POST("/register_key", history.RegisterKey)
		historyRoutes.GET("/key", history.Key)
		historyRoutes.GET("/hasKey", history.HasKey)
		historyRoutes.POST("/logPresentation", history.LogPresentation)
		historyRoutes.GET("/get", history.Get)
	}

	router.POST("/integrity/verify", integrity.Verify)

	rp := router.Group("/rp/config/:domain")
	{
		rp.GET("", relyingParty.GetConfig)
		rp.POST("", sessions, requireSession, relyingParty.SetConfig)
		rp.DELETE("", sessions, requireSession, relyingParty.DeleteConfig)
	}

	return router
}
