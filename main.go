package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/memory/v2"
	"github.com/gofiber/storage/redis/v3"
	"github.com/khanghh/appsso/internal/access"
	"github.com/khanghh/appsso/internal/admin"
	"github.com/khanghh/appsso/internal/audit"
	"github.com/khanghh/appsso/internal/auth"
	"github.com/khanghh/appsso/internal/common"
	"github.com/khanghh/appsso/internal/config"
	"github.com/khanghh/appsso/internal/handlers/api"
	"github.com/khanghh/appsso/internal/mail"
	"github.com/khanghh/appsso/internal/metrics"
	"github.com/khanghh/appsso/internal/middlewares"
	"github.com/khanghh/appsso/internal/oauth"
	"github.com/khanghh/appsso/internal/render"
	"github.com/khanghh/appsso/internal/store"
	"github.com/khanghh/appsso/internal/token"
	"github.com/khanghh/appsso/internal/users"
	"github.com/khanghh/appsso/model"
	"github.com/khanghh/appsso/params"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
	gitTag    string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
	migrateFlag = &cli.BoolFlag{
		Name:  "migrate",
		Usage: "Run database migrations on startup",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "appsso - single sign-on token service for internal applications"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
		migrateFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
		{
			Name:  "genkey",
			Usage: "Print a pair of random signing secrets",
			Action: func(ctx *cli.Context) error {
				for _, name := range []string{"JWT_SECRET", "JWT_REFRESH_SECRET"} {
					secret, err := common.GenerateSecret(48)
					if err != nil {
						return err
					}
					fmt.Printf("%s=%s\n", name, secret)
				}
				return nil
			},
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func openDialector(driver string, dsn string) gorm.Dialector {
	if driver == "postgres" {
		return postgres.Open(dsn)
	}
	return mysql.Open(dsn)
}

func mustInitDatabase(dbConfig config.DatabaseConfig, debug bool, migrate bool) *gorm.DB {
	logLevel := gormlogger.Warn
	if debug {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(openDialector(dbConfig.Driver, dbConfig.Dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if len(dbConfig.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(dbConfig.Replicas))
		for _, dsn := range dbConfig.Replicas {
			replicas = append(replicas, openDialector(dbConfig.Driver, dsn))
		}
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}).
			SetMaxIdleConns(dbConfig.MaxIdleConns).
			SetMaxOpenConns(dbConfig.MaxOpenConns).
			SetConnMaxIdleTime(dbConfig.ConnMaxIdleTime).
			SetConnMaxLifetime(dbConfig.ConnMaxLifetime)
		if err := db.Use(resolver); err != nil {
			slog.Error("Failed to register read replicas", "error", err)
			os.Exit(1)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Failed to get database handle", "error", err)
		os.Exit(1)
	}
	if dbConfig.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	}
	if dbConfig.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	}
	sqlDB.SetConnMaxIdleTime(dbConfig.ConnMaxIdleTime)
	sqlDB.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	if dbConfig.AutoMigrate || migrate {
		if err := model.AutoMigrate(db); err != nil {
			slog.Error("Database migration failed", "error", err)
			os.Exit(1)
		}
	}
	return db
}

// mustInitCache returns the token cache and the storage used for rate
// limiter counters, both on the configured backend.
func mustInitCache(cacheCfg config.CacheConfig) (store.Storage, fiber.Storage) {
	switch cacheCfg.Backend {
	case "memory":
		memStorage := memory.New(memory.Config{GCInterval: params.MemoryCacheGCInterval})
		return store.NewMemoryStorage(memStorage), memStorage
	default:
		redisStorage := redis.New(redis.Config{
			URL:           cacheCfg.Redis.URL,
			PoolSize:      cacheCfg.Redis.PoolSize,
			IsClusterMode: cacheCfg.Redis.ClusterMode,
		})
		return store.NewRedisStorage(redisStorage.Conn()), redisStorage
	}
}

func mustInitTokenConfig(jwtCfg config.JWTConfig) token.Config {
	tokenCfg := token.Config{
		AccessSecret:    []byte(jwtCfg.Secret),
		RefreshSecret:   []byte(jwtCfg.RefreshSecret),
		AccessLifetime:  jwtCfg.AccessLifetime,
		RefreshLifetime: jwtCfg.RefreshLifetime,
	}
	if err := tokenCfg.Validate(); err != nil {
		log.Fatalf("Invalid token configuration: %v", err)
	}
	return tokenCfg
}

func mustInitOAuthProviders(ctx context.Context, config *config.Config) []oauth.OAuthProvider {
	var providers []oauth.OAuthProvider
	for providerName, providerCfg := range config.AuthProviders.OAuth {
		callbackURL, _ := url.JoinPath(config.BaseURL, "oauth", providerName, "callback")
		switch providerName {
		case "google":
			provider, err := oauth.NewGoogleOAuthProvider(ctx, callbackURL, providerCfg.ClientID, providerCfg.ClientSecret,
				oauth.WithScopes(providerCfg.Scope...))
			if err != nil {
				log.Fatalf("Failed to initialize %s provider: %v", providerName, err)
			}
			providers = append(providers, provider)
		default:
			slog.Error("Unsupported OAuth provider", "provider", providerName)
			os.Exit(1)
		}
	}
	if len(providers) == 0 {
		slog.Warn("No identity provider configured, logins will be refused")
	}
	return providers
}

func mustInitMailSender(mailCfg config.MailConfig) mail.MailSender {
	switch mailCfg.Backend {
	case "":
		return &mail.NullMailSender{}
	case "smtp":
		smtpCfg := mailCfg.SMTP
		sender, err := mail.NewSMTPMailSender(mail.SMTPConfig{
			Host:               smtpCfg.Host,
			Port:               smtpCfg.Port,
			Username:           smtpCfg.Username,
			Password:           smtpCfg.Password,
			TLS:                smtpCfg.TLS,
			CertFile:           smtpCfg.CertFile,
			KeyFile:            smtpCfg.KeyFile,
			CAFile:             smtpCfg.CAFile,
			InsecureSkipVerify: smtpCfg.Insecure,
		}, mailCfg.From)
		if err != nil {
			log.Fatalf("Failed to initialize SMTP mail sender: %v", err)
		}
		return sender
	}
	log.Fatalf("Unsupported mail sender backend %s", mailCfg.Backend)
	return nil
}

func setupAPIRoutes(
	router fiber.Router,
	rateLimit config.RateLimitConfig,
	limiterStorage fiber.Storage,
	verifier *token.Verifier,
	authService *auth.AuthService,
	adminService *admin.AdminService,
	frontendURL string) {

	// handlers
	var (
		authHandler  = api.NewAuthHandler(authService, frontendURL)
		appsHandler  = api.NewAppsHandler(adminService)
		adminHandler = api.NewAdminHandler(adminService)
	)

	// middlewares
	var (
		authn        = middlewares.Authenticate(verifier)
		requireAdmin = middlewares.RequireRole(access.RoleAdmin)
		authLimiter  = middlewares.RateLimit(middlewares.RateLimitConfig{
			Max:        rateLimit.AuthMax,
			Expiration: rateLimit.AuthWindow,
			Storage:    limiterStorage,
			Prefix:     params.AuthRateLimitKeyPrefix,
		})
	)

	// routes
	router.Get("/oauth/:provider/login", authLimiter, authHandler.GetOAuthLogin)
	router.Get("/oauth/:provider/callback", authLimiter, authHandler.GetOAuthCallback)

	apiRouter := router.Group("/api", middlewares.RateLimit(middlewares.RateLimitConfig{
		Max:        rateLimit.Max,
		Expiration: rateLimit.Window,
		Storage:    limiterStorage,
		Prefix:     params.APIRateLimitKeyPrefix,
	}))
	apiRouter.Post("/auth/google", authLimiter, authHandler.PostGoogleLogin)
	apiRouter.Post("/auth/verify", authHandler.PostVerify)
	apiRouter.Post("/auth/refresh", authLimiter, authHandler.PostRefresh)
	apiRouter.Post("/auth/logout", authn, authHandler.PostLogout)
	apiRouter.Get("/auth/me", authn, authHandler.GetMe)
	apiRouter.Post("/auth/refresh-token", authn, authHandler.PostRefreshToken)
	apiRouter.Get("/apps", authn, appsHandler.GetApps)
	apiRouter.Get("/apps/my", authn, appsHandler.GetMyApps)

	adminRouter := apiRouter.Group("/admin", authn, requireAdmin)
	adminRouter.Get("/users", adminHandler.GetUsers)
	adminRouter.Post("/users", adminHandler.PostUser)
	adminRouter.Patch("/users/:userId/status", adminHandler.PatchUserStatus)
	adminRouter.Post("/users/:userId/apps", adminHandler.PostUserApp)
	adminRouter.Delete("/users/:userId/apps/:appId", adminHandler.DeleteUserApp)
	adminRouter.Get("/applications", adminHandler.GetApplications)
	adminRouter.Get("/roles", adminHandler.GetRoles)
}

func run(ctx *cli.Context) error {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	debug := config.Debug || ctx.IsSet(debugFlag.Name)
	mustInitLogger(debug)
	tokenConfig := mustInitTokenConfig(config.JWT)

	if err := render.Initialize(map[string]interface{}{
		"siteName": config.SiteName,
		"baseURL":  config.BaseURL,
	}, config.TemplateDir); err != nil {
		log.Fatalf("Failed to initialize templates: %v", err)
	}
	mailSender := mustInitMailSender(config.Mail)
	db := mustInitDatabase(config.Database, debug, ctx.Bool(migrateFlag.Name))
	cacheStorage, limiterStorage := mustInitCache(config.Cache)
	metrics.Init()

	// repositories
	var (
		userRepo       = users.NewUserRepository(db)
		assignmentRepo = access.NewAssignmentRepository(db)
		catalogRepo    = access.NewCatalogRepository(db)
		tokenRepo      = token.NewTokenRepository(db)
		auditRepo      = audit.NewAuditEventRepository(db)
	)
	audit.Initialize(auditRepo)

	// token core
	issuer, err := token.NewIssuer(tokenConfig)
	if err != nil {
		log.Fatalf("Failed to initialize token issuer: %v", err)
	}
	tokenStore := token.NewStore(cacheStorage, tokenRepo, tokenConfig.AccessLifetime)
	verifier, err := token.NewVerifier(tokenConfig, tokenStore)
	if err != nil {
		log.Fatalf("Failed to initialize token verifier: %v", err)
	}

	// services
	var (
		userService  = users.NewUserService(userRepo)
		resolver     = access.NewResolver(assignmentRepo)
		adminService = admin.NewAdminService(userService, assignmentRepo, catalogRepo, tokenStore)
		authService  = auth.NewAuthService(
			userService,
			resolver,
			issuer,
			tokenStore,
			verifier,
			cacheStorage,
			mustInitOAuthProviders(ctx.Context, config),
			auth.WithMailSender(mailSender, config.SiteName),
		)
	)

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.AllowOrigins, ", "),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: len(config.AllowOrigins) > 0 && config.AllowOrigins[0] != "*",
	}))
	router.Use(metrics.Instrument())

	setupAPIRoutes(
		router,
		config.RateLimit,
		limiterStorage,
		verifier,
		authService,
		adminService,
		config.FrontendURL,
	)

	healthCheckCtx, term := context.WithCancel(ctx.Context)
	done := make(chan struct{})
	go common.StartHealthCheckServer(healthCheckCtx, done, config.HealthCheckAddr,
		func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		cacheStorage.Ping,
	)
	defer func() {
		term()
		<-done
	}()
	slog.Info("Starting server", "version", params.VersionWithCommit(gitCommit, gitDate), "addr", config.ListenAddr)
	return router.Listen(config.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
