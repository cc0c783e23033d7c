package http

import (
	"context"
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tourhub/tourhub/internal/cache"
	"github.com/tourhub/tourhub/internal/catalog"
	"github.com/tourhub/tourhub/internal/config"
	"github.com/tourhub/tourhub/internal/domain/user"
	"github.com/tourhub/tourhub/internal/http/handlers"
	"github.com/tourhub/tourhub/internal/http/middlewares"
	"github.com/tourhub/tourhub/internal/http/views"
	"github.com/tourhub/tourhub/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "tourhub"

// Deps is everything the router needs from main.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Accounts handlers.AccountService
	Catalog  *catalog.Service
	Tokens   middlewares.TokenVerifier
	Users    middlewares.SubjectLoader

	// Counter backs the API rate limiter; nil keeps counts in process.
	Counter   middlewares.Counter
	ListCache *cache.Cache
	Ping      func(ctx context.Context) error
}

func NewRouter(d Deps) *gin.Engine {
	if !d.Config.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	_ = r.SetTrustedProxies(nil)

	errs := middlewares.NewErrorHandler(d.Log, !d.Config.IsProd(), views.ErrorPage)

	r.Use(errs.Recovery())
	r.Use(middlewares.RequestID())
	if d.Config.OtelEnabled {
		r.Use(otelgin.Middleware(serviceName))
	}
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(d.Log))
	// wraps errs.Handle, which writes after c.Next returns
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(errs.Handle())
	r.Use(middlewares.SecurityHeaders(d.Config.IsProd()))
	r.Use(middlewares.CORS(d.Config.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(d.Config.MaxBodyBytes))

	r.SetHTMLTemplate(views.Templates())
	r.StaticFS("/static", views.Static())

	// health
	health := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	gate := middlewares.NewGate(d.Tokens, d.Users)

	// pages
	pages := views.NewHandler(d.Catalog)
	r.GET("/", gate.SoftAuth(), pages.Overview)
	r.GET("/tour/:slug", gate.SoftAuth(), pages.Tour)
	r.GET("/login", gate.SoftAuth(), pages.Login)
	r.GET("/me", gate.Protect(), pages.Account)

	limiter := middlewares.NewRateLimiter(middlewares.RateLimiterConfig{
		Limit:   d.Config.RateLimitMax,
		Window:  d.Config.RateLimitWindow,
		Message: "Too many requests from this IP, please try again in an hour",
		Counter: d.Counter,
		Prom:    d.Prom,
		Log:     d.Log,
	})

	api := r.Group("/api", limiter.RateLimiterMiddleware(middlewares.KeyByIP), middlewares.RequireJSON())
	v1 := api.Group("/v1")

	tourHandler := handlers.NewToursHandlerWithCache(d.Catalog, d.ListCache, d.Prom)
	reviewHandler := handlers.NewReviewsHandler(d.Catalog, d.ListCache)
	authHandler := handlers.NewAuthHandler(d.Accounts, handlers.CookieConfig{
		TTL:    d.Config.JWTCookieExpireIn,
		Secure: d.Config.IsProd(),
	})
	userHandler := handlers.NewUsersHandler(d.Accounts)

	staff := []user.Role{user.RoleAdmin, user.RoleLeadGuide}

	// tours
	tours := v1.Group("/tours")
	{
		nested := tours.Group("/:id/reviews", gate.Protect())
		nested.GET("", reviewHandler.List)
		nested.POST("", middlewares.RestrictTo(user.RoleUser), reviewHandler.Create)

		tours.GET("/top-5-cheap", handlers.AliasTopTours, tourHandler.List)
		tours.GET("/tour-stats", tourHandler.Stats)
		tours.GET("/monthly-plan/:year", gate.Protect(),
			middlewares.RestrictTo(user.RoleAdmin, user.RoleLeadGuide, user.RoleGuide), tourHandler.MonthlyPlan)
		tours.GET("/tours-within/:distance/center/:latlng/unit/:unit", tourHandler.Within)
		tours.GET("/distances/:latlng/unit/:unit", tourHandler.Distances)

		tours.GET("", tourHandler.List)
		tours.POST("", gate.Protect(), middlewares.RestrictTo(staff...), tourHandler.Create)
		tours.GET("/:id", tourHandler.Get)
		tours.PATCH("/:id", gate.Protect(), middlewares.RestrictTo(staff...), tourHandler.Update)
		tours.DELETE("/:id", gate.Protect(), middlewares.RestrictTo(staff...), tourHandler.Delete)
	}

	// users
	users := v1.Group("/users")
	{
		users.POST("/signup", authHandler.SignUp)
		users.POST("/login", authHandler.Login)
		users.GET("/logout", authHandler.Logout)
		users.POST("/forgotPassword", authHandler.ForgotPassword)
		users.PATCH("/resetPassword/:token", authHandler.ResetPassword)

		self := users.Group("", gate.Protect())
		self.PATCH("/updateMyPassword", authHandler.UpdatePassword)
		self.GET("/me", userHandler.Me)
		self.PATCH("/updateMe", userHandler.UpdateMe)
		self.DELETE("/deleteMe", userHandler.DeleteMe)

		admin := self.Group("", middlewares.RestrictTo(user.RoleAdmin))
		admin.GET("", userHandler.List)
		admin.POST("", userHandler.Create)
		admin.GET("/:id", userHandler.Get)
		admin.PATCH("/:id", userHandler.Update)
		admin.DELETE("/:id", userHandler.Delete)
	}

	// reviews
	reviews := v1.Group("/reviews", gate.Protect())
	{
		reviews.GET("", reviewHandler.List)
		reviews.POST("", middlewares.RestrictTo(user.RoleUser), reviewHandler.Create)
		reviews.GET("/:reviewId", reviewHandler.Get)
		reviews.PATCH("/:reviewId", middlewares.RestrictTo(user.RoleUser, user.RoleAdmin), reviewHandler.Update)
		reviews.DELETE("/:reviewId", middlewares.RestrictTo(user.RoleUser, user.RoleAdmin), reviewHandler.Delete)
	}

	r.NoRoute(middlewares.NotFound())

	return r
}
