// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// authentication, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/alert"
	"github.com/Lapkipomoshi/help-paw-backend/internal/auth"
	"github.com/Lapkipomoshi/help-paw-backend/internal/config"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/filter"
	"github.com/Lapkipomoshi/help-paw-backend/internal/geocode"
	"github.com/Lapkipomoshi/help-paw-backend/internal/http/handlers"
	"github.com/Lapkipomoshi/help-paw-backend/internal/http/middleware"
	"github.com/Lapkipomoshi/help-paw-backend/internal/mail"
	"github.com/Lapkipomoshi/help-paw-backend/internal/realtime"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
	"github.com/Lapkipomoshi/help-paw-backend/internal/services"
	"github.com/Lapkipomoshi/help-paw-backend/internal/storage"
)

// chatRepoShim adapts the repository free functions to the services.ChatRepo
// interface expected by the ChatService. This keeps services decoupled from
// the concrete repo package while reusing existing functions.
type chatRepoShim struct{}

// CreateChat proxies repo.CreateChat.
func (chatRepoShim) CreateChat(ctx context.Context, db *gorm.DB, shelterID, userID string) (*domain.Chat, error) {
	return repo.CreateChat(ctx, db, shelterID, userID)
}

// FindChat proxies repo.FindChat.
func (chatRepoShim) FindChat(ctx context.Context, db *gorm.DB, shelterID, userID string) (*domain.Chat, error) {
	return repo.FindChat(ctx, db, shelterID, userID)
}

// GetChat proxies repo.GetChat.
func (chatRepoShim) GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	return repo.GetChat(ctx, db, id)
}

// ListUserChatsPage proxies repo.ListUserChatsPage.
func (chatRepoShim) ListUserChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, int64, error) {
	return repo.ListUserChatsPage(ctx, db, userID, offset, limit)
}

// ListShelterChatsPage proxies repo.ListShelterChatsPage.
func (chatRepoShim) ListShelterChatsPage(ctx context.Context, db *gorm.DB, shelterID string, offset, limit int) ([]domain.Chat, int64, error) {
	return repo.ListShelterChatsPage(ctx, db, shelterID, offset, limit)
}

// DeleteChat proxies repo.DeleteChat.
func (chatRepoShim) DeleteChat(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteChat(ctx, db, id)
}

// Deps are the infrastructure pieces the routes are built on. Only DB and
// Provider are required; the rest fall back to local implementations.
type Deps struct {
	DB       *gorm.DB
	Provider services.PaymentProvider
	Store    storage.Store
	Geocoder geocode.Geocoder
	Mailer   mail.Mailer
	// Hub enables websocket push; nil disables GET /chats/:id/ws.
	Hub   *realtime.Hub
	Alert alert.Reporter
}

// Services builds the application services from d and cfg.
func Services(d Deps, cfg config.Config) handlers.Services {
	if d.Store == nil {
		d.Store = storage.NewMemory("/media")
	}
	if d.Geocoder == nil {
		d.Geocoder = geocode.Noop{}
	}
	if d.Mailer == nil {
		d.Mailer = mail.LogMailer{}
	}
	if d.Alert == nil {
		d.Alert = alert.LogReporter{}
	}
	var pub realtime.Publisher = realtime.Nop{}
	var sub handlers.Subscriber
	if d.Hub != nil {
		pub, sub = d.Hub, d.Hub
	}

	signer := auth.NewSigner(cfg.Auth.Secret)
	chats := services.NewChatService(d.DB, chatRepoShim{})

	return handlers.Services{
		Users: &services.UserService{
			DB:     d.DB,
			Tokens: signer,
			Mailer: d.Mailer,
			TTL: services.TokenTTLs{
				Access:      cfg.Auth.AccessTTL,
				Refresh:     cfg.Auth.RefreshTTL,
				Activation:  cfg.Auth.ActivationTTL,
				Reset:       cfg.Auth.ResetTTL,
				EmailChange: cfg.Auth.EmailChangeTTL,
			},
			FrontendURL: cfg.Auth.FrontendURL,
		},
		Shelters:  &services.ShelterService{DB: d.DB, Geocoder: d.Geocoder, Filter: filter.New(nil)},
		Pets:      &services.PetService{DB: d.DB},
		Tasks:     &services.TaskService{DB: d.DB},
		Vacancies: &services.VacancyService{DB: d.DB},
		News:      services.NewNewsService(d.DB, d.Store),
		Help:      services.NewHelpArticleService(d.DB, d.Store, cfg.SearchCacheTTL),
		FAQ:       services.NewFAQService(d.DB, cfg.SearchCacheTTL),
		Images:    &services.ImageService{DB: d.DB, Store: d.Store},
		Chats:     chats,
		Messages:  &services.MessageService{DB: d.DB, Chats: chats, Hub: pub},
		Payments: &services.PaymentService{
			DB:             d.DB,
			Provider:       d.Provider,
			Tokens:         signer,
			MinDonation:    cfg.MinDonationAmount(),
			ReturnURLBase:  cfg.Yookassa.ReturnURLBase,
			WebhookURL:     cfg.Yookassa.WebhookURL,
			TestMode:       cfg.Yookassa.TestMode,
			StateTTL:       cfg.Yookassa.StateTTL,
			IdempotencyTTL: cfg.IdempotencyTTL,
		},
		Hub:      sub,
		Upgrader: realtime.Upgrader(cfg.CORS.AllowedOrigins),
		Alert:    d.Alert,
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with token/PII scrubbing
//  4. Recovery: capture panics after logger, alert operators
//  5. Body size limiter
//  6. Metrics
//  7. Authentication (anonymous passes through)
//  8. Rate limiter (per user/IP, bypass on idempotent replay)
//  9. CORS, security headers and compression
//
// Credential endpoints get a stricter per-IP limiter and the donation
// endpoint validates Idempotency-Key.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	svc := Services(d, cfg)
	h := handlers.New(svc)

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Api-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery(svc.Alert))

	// 5) Global body size limit
	r.Use(limitBody(cfg.MaxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Bearer token → actor
	r.Use(middleware.Authenticate(svc.Users))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (allow all if none configured)
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	// Security headers (HSTS only when enabled and request is HTTPS)
	base := cfg.APIBasePath
	if base == "/" {
		base = ""
	}
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{base + "/auth/", base + "/partner-link"},
		EnablePolicy:    true,
	}))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`/ws$`, `^/metrics$`})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authLimit := middleware.NewRateLimiter(cfg.AuthRateRPS, cfg.AuthRateBurst, middleware.KeyByIP()).Handler()
	idem := middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200, ScopeParam: "id"},
		func(ctx context.Context, who, shelterID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, d.DB, who, shelterID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Accounts
		api.POST("/auth/users", authLimit, h.RegisterUser)
		api.POST("/auth/users/activation", authLimit, h.ActivateUser)
		api.POST("/auth/jwt/create", authLimit, h.CreateToken)
		api.POST("/auth/jwt/refresh", authLimit, h.RefreshToken)
		api.POST("/auth/jwt/verify", h.VerifyToken)
		api.GET("/auth/users/me", h.GetMe)
		api.PATCH("/auth/users/me", h.UpdateMe)
		api.GET("/auth/users/me/donations", h.MyDonations)
		api.POST("/auth/users/reset_password", authLimit, h.ResetPassword)
		api.POST("/auth/users/reset_password_confirm", authLimit, h.ResetPasswordConfirm)
		api.POST("/auth/users/reset_email", authLimit, h.ResetEmail)
		api.POST("/auth/users/reset_email_confirm", authLimit, h.ResetEmailConfirm)

		// Shelters
		api.GET("/shelters", h.ListShelters)
		api.POST("/shelters", h.RegisterShelter)
		api.GET("/shelters/on-main", h.SheltersOnMain)
		api.GET("/shelters/:id", h.GetShelter)
		api.DELETE("/shelters/:id", h.DeleteShelter)
		api.POST("/shelters/:id/approve", h.ApproveShelter)
		api.POST("/shelters/:id/favourite", h.AddFavourite)
		api.DELETE("/shelters/:id/favourite", h.RemoveFavourite)
		api.GET("/shelters/:id/pets", h.ListShelterPets)
		api.GET("/shelters/:id/tasks", h.ListShelterTasks)
		api.GET("/shelters/:id/vacancies", h.ListShelterVacancies)
		api.GET("/shelters/:id/news", h.ListShelterNews)
		api.POST("/shelters/:id/start-chat", h.StartChat)
		api.POST("/shelters/:id/donate", idem, h.Donate)
		api.GET("/animal-types", h.ListAnimalTypes)
		api.POST("/animal-types", h.CreateAnimalType)

		// The caller's shelter
		my := api.Group("/my-shelter")
		my.GET("", h.GetMyShelter)
		my.PATCH("", h.UpdateMyShelter)
		my.DELETE("", h.DeleteMyShelter)
		my.GET("/pets", h.ListMyPets)
		my.POST("/pets", h.CreatePet)
		my.PATCH("/pets/:id", h.UpdatePet)
		my.DELETE("/pets/:id", h.DeletePet)
		my.POST("/pets/:id/adopt", h.AdoptPet)
		my.GET("/tasks", h.ListMyTasks)
		my.POST("/tasks", h.CreateTask)
		my.PATCH("/tasks/:id", h.UpdateTask)
		my.DELETE("/tasks/:id", h.DeleteTask)
		my.POST("/tasks/:id/finish", h.FinishTask)
		my.GET("/vacancies", h.ListMyVacancies)
		my.POST("/vacancies", h.CreateMyVacancy)
		my.PATCH("/vacancies/:id", h.UpdateMyVacancy)
		my.DELETE("/vacancies/:id", h.DeleteMyVacancy)
		my.GET("/news", h.ListMyNews)
		my.POST("/news", h.CreateMyNews)
		my.PATCH("/news/:id", h.UpdateMyNews)
		my.DELETE("/news/:id", h.DeleteMyNews)
		my.GET("/chats", h.ListShelterChats)

		// Directory
		api.GET("/pets", h.ListPets)
		api.GET("/pets/:id", h.GetPet)
		api.GET("/vacancies", h.ListVacancies)
		api.POST("/vacancies", h.CreatePlatformVacancy)
		api.GET("/vacancies/platform", h.ListPlatformVacancies)
		api.GET("/vacancies/:id", h.GetVacancy)
		api.PATCH("/vacancies/:id", h.UpdatePlatformVacancy)
		api.DELETE("/vacancies/:id", h.DeletePlatformVacancy)
		api.POST("/vacancies/:id/toggle-close", h.ToggleVacancyClosed)

		// Content
		api.GET("/news", h.ListNews)
		api.POST("/news", h.CreateNews)
		api.GET("/news/:id", h.GetNews)
		api.PATCH("/news/:id", h.UpdateNews)
		api.DELETE("/news/:id", h.DeleteNews)
		api.GET("/help-articles", h.ListHelpArticles)
		api.POST("/help-articles", h.CreateHelpArticle)
		api.GET("/help-articles/:id", h.GetHelpArticle)
		api.PATCH("/help-articles/:id", h.UpdateHelpArticle)
		api.DELETE("/help-articles/:id", h.DeleteHelpArticle)
		api.GET("/faq", h.ListFAQ)
		api.POST("/faq", h.CreateFAQ)
		api.GET("/faq/:id", h.GetFAQ)
		api.PATCH("/faq/:id", h.UpdateFAQ)
		api.DELETE("/faq/:id", h.DeleteFAQ)
		api.POST("/images", h.UploadImage)

		// Chats
		api.GET("/chats", h.ListChats)
		api.GET("/chats/:id", h.GetChat)
		api.DELETE("/chats/:id", h.DeleteChat)
		api.POST("/chats/:id/send-message", h.SendMessage)
		api.GET("/chats/:id/messages", h.ListMessages)
		api.PATCH("/chats/:id/messages/:msg_id", h.EditMessage)
		api.DELETE("/chats/:id/messages/:msg_id", h.DeleteMessage)
		api.POST("/chats/:id/read", h.MarkRead)
		api.GET("/chats/:id/ws", h.ChatSocket)

		// Payments
		api.POST("/webhook-callback", h.PaymentWebhook)
		api.GET("/partner-link", h.PartnerLink)
		api.GET("/partner-link-callback", h.PartnerLinkCallback)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = 12 << 20
	}
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
