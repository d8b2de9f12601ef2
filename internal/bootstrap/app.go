package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"civic-issue-portal/internal/domain"
	httpHandler "civic-issue-portal/internal/handler/http"
	wsHandler "civic-issue-portal/internal/handler/websocket"
	"civic-issue-portal/internal/hub"
	"civic-issue-portal/internal/infra/classifier"
	"civic-issue-portal/internal/infra/geo"
	"civic-issue-portal/internal/infra/media"
	gormpersistence "civic-issue-portal/internal/infra/persistence/gorm"
	"civic-issue-portal/internal/infra/setup"
	redisstate "civic-issue-portal/internal/infra/state/redis"
	"civic-issue-portal/internal/middleware"
	"civic-issue-portal/internal/service"
	"civic-issue-portal/internal/tasks"
	"civic-issue-portal/internal/worker"
)

// Config 存储从环境变量或 .env 文件加载的配置
type Config struct {
	DBUser             string
	DBPassword         string
	DBHost             string
	DBPort             string
	DBName             string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	JWTSecret          string
	ServerPort         string
	LogLevel           string
	RateLimitMax       int
	RateLimitWindow    time.Duration
	JWTExpiryHours     int
	AppEnv             string
	KeyPrefix          string
	UploadDir          string
	ClassifierEndpoint string
	ClassifierAPIKey   string
	GeocoderBaseURL    string
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在), 忽略错误, 允许只使用环境变量
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:             os.Getenv("DB_USER"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBHost:             os.Getenv("DB_HOST"),
		DBPort:             os.Getenv("DB_PORT"),
		DBName:             os.Getenv("DB_NAME"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		ServerPort:         os.Getenv("SERVER_PORT"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		AppEnv:             os.Getenv("APP_ENV"),
		KeyPrefix:          os.Getenv("REDIS_KEY_PREFIX"),
		UploadDir:          os.Getenv("UPLOAD_DIR"),
		ClassifierEndpoint: os.Getenv("CLASSIFIER_ENDPOINT"),
		ClassifierAPIKey:   os.Getenv("CLASSIFIER_API_KEY"),
		GeocoderBaseURL:    os.Getenv("GEOCODER_BASE_URL"),
		RateLimitMax:       100,
		RateLimitWindow:    1 * time.Second,
		JWTExpiryHours:     24,
	}

	redisDBStr := os.Getenv("REDIS_DB")
	cfg.RedisDB, _ = strconv.Atoi(redisDBStr) // 忽略错误, 默认为 0

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "cip:"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// App 包含应用的所有组件和配置
type App struct {
	Config         *Config
	Log            *logrus.Logger
	DB             *gorm.DB
	RedisClient    *redis.Client
	AsynqClient    *asynq.Client
	AsynqServer    *worker.WorkerServer
	Hub            *hub.Hub
	HttpServer     *http.Server
	redisClientOpt asynq.RedisClientOpt
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel) // 已在 LoadConfig 验证
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Info("Configuration loaded successfully")

	// 3. 初始化基础设施
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database initialized and migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	log.Info("Redis client initialized")

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Asynq client initialized")

	// 4. 初始化 Repositories
	userRepo := gormpersistence.NewGormUserRepository(db)
	communityRepo := gormpersistence.NewGormCommunityRepository(db)
	messageRepo := gormpersistence.NewGormMessageRepository(db)
	issueRepo := gormpersistence.NewGormIssueRepository(db)
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)
	log.Info("Repositories initialized")

	// 5. 初始化外部服务边界
	mediaStore, err := media.NewLocalStore(cfg.UploadDir, "/uploads")
	if err != nil {
		return nil, fmt.Errorf("failed to init media store: %w", err)
	}
	var issueClassifier service.Classifier
	if cfg.ClassifierEndpoint != "" {
		issueClassifier = classifier.NewHTTPClassifier(cfg.ClassifierEndpoint, cfg.ClassifierAPIKey)
	} else {
		log.Warn("CLASSIFIER_ENDPOINT not set, issues keep fallback labels")
	}
	geocoder := geo.NewNominatimGeocoder(cfg.GeocoderBaseURL, "civic-issue-portal")
	log.Info("External service boundaries initialized")

	// 6. 初始化 Hub (消息网关)
	hubInstance := hub.NewHub(messageRepo, stateRepo)
	log.Info("Hub initialized")

	// 7. 初始化 Services
	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	communityService := service.NewCommunityService(communityRepo, userRepo, messageRepo, stateRepo, hubInstance)
	issueService := service.NewIssueService(issueRepo, mediaStore, issueClassifier, asynqClient)
	locationService := service.NewLocationService(geocoder)
	log.Info("Services initialized")

	// 8. 初始化 Handlers
	authHandler := httpHandler.NewAuthHandler(authService)
	communityHandler := httpHandler.NewCommunityHandler(communityService)
	issueHandler := httpHandler.NewIssueHandler(issueService)
	locationHandler := httpHandler.NewLocationHandler(locationService)
	socketHandler := wsHandler.NewWebSocketHandler(hubInstance)
	log.Info("Handlers initialized")

	// 9. 初始化 Worker Server
	workerServer := worker.NewWorkerServer(redisClientOpt, issueService, asynqClient, log)
	log.Info("Worker server initialized")

	// 10. 初始化 Gin Engine 和路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(func(c *gin.Context) { /* CORS */
		allowedOrigin := os.Getenv("CORS_ALLOWED_ORIGIN")
		if allowedOrigin == "" {
			allowedOrigin = "http://localhost:3000"
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
	router.Use(middleware.RateLimit(stateRepo, cfg.RateLimitMax, cfg.RateLimitWindow))

	api := router.Group("/api")
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}
	communityRoutes := api.Group("/communities").Use(middleware.Auth(cfg.JWTSecret))
	{
		communityRoutes.GET("", communityHandler.List)
		communityRoutes.POST("", communityHandler.Create)
		communityRoutes.GET("/:id", communityHandler.Detail)
		communityRoutes.GET("/:id/messages", communityHandler.Messages)
		communityRoutes.POST("/:id/join", communityHandler.Join)
		communityRoutes.POST("/:id/leave", communityHandler.Leave)
		communityRoutes.POST("/:id/approve/:userId", communityHandler.Approve)
		communityRoutes.POST("/:id/reject/:userId", communityHandler.Reject)
		communityRoutes.POST("/:id/kick/:userId", communityHandler.Kick)
	}
	issueRoutes := api.Group("/issues").Use(middleware.Auth(cfg.JWTSecret))
	{
		issueRoutes.POST("", issueHandler.Report)
		issueRoutes.GET("", issueHandler.List)
		issueRoutes.GET("/my", issueHandler.ListMine)
		issueRoutes.GET("/:id", issueHandler.Detail)
		issueRoutes.PATCH("/:id/status", middleware.RequireRole(domain.RoleWorker), issueHandler.UpdateStatus)
	}
	locationRoutes := api.Group("/location").Use(middleware.Auth(cfg.JWTSecret))
	{
		locationRoutes.GET("/search", locationHandler.Search)
		locationRoutes.GET("/reverse", locationHandler.Reverse)
	}
	wsRoutes := router.Group("/ws").Use(middleware.Auth(cfg.JWTSecret))
	{
		wsRoutes.GET("", socketHandler.HandleConnection)
	}
	router.Static("/uploads", mediaStore.BaseDir())
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	// 11. 初始化 HTTP Server
	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	app := &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}
	log.Info("Application assembled successfully")

	return app, nil
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// registerPeriodicTasks 注册周期任务: 定时捞起仍未分类的工单
func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	taskPayload, err := tasks.NewIssueClassifySweepTask()
	if err != nil {
		a.Log.Errorf("Failed to create classify sweep task payload: %v", err)
		return
	}
	task := asynq.NewTask(tasks.TypeIssueClassifySweep, taskPayload)

	schedule := "@every 5m"
	entryID, err := scheduler.Register(schedule, task, asynq.Queue("low"))
	if err != nil {
		a.Log.Errorf("Could not register periodic classify sweep task: %v", err)
	} else {
		a.Log.Infof("Periodic classify sweep task registered with schedule '%s' (EntryID: %s)", schedule, entryID)
	}

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := scheduler.Run(); err != nil {
			if !errors.Is(err, asynq.ErrServerClosed) {
				a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
			} else {
				a.Log.Info("Asynq scheduler stopped.")
			}
		}
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 优雅关闭 Worker Server
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 2. 优雅关闭 HTTP 服务器
	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 3. 关闭 Asynq Client
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}

	// 4. 关闭 Redis 连接
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		if errorMessage != "" {
			entry.Error(errorMessage)
		} else if statusCode >= 500 {
			entry.Error("Server error")
		} else if statusCode >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Request handled")
		}
	}
}
