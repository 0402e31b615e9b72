package main

import (
	"context"
	"os"

	"ims-backend/internal/database"
	"ims-backend/internal/handler"
	"ims-backend/internal/middleware"
	"ims-backend/internal/repository"
	"ims-backend/internal/service"
	"ims-backend/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Stock Issuance Workflow API
// @version         1.0
// @description     Multi-item, multi-stage approval workflow for stock issuance requests.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := godotenv.Load("configs/.env"); err != nil {
		logger.Info("no configs/.env file found, relying on environment")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSslMode := os.Getenv("DB_SSLMODE")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	if dbUser == "" {
		dbUser = "postgres"
	}
	if dbPassword == "" {
		dbPassword = "postgres"
	}
	if dbName == "" {
		dbName = "postgres"
	}
	if dbSslMode == "" {
		dbSslMode = "disable"
	}

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	logger.Info("connected to PostgreSQL")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	// Permission middleware needs a DB handle for role lookups
	middleware.InitPermissionMiddleware(db)

	// Built-in roles and permission codes must exist before any gated route
	// can answer something other than 403
	if err := service.SeedDefaultRolesAndPermissions(context.Background(), db); err != nil {
		logger.Fatal("failed to seed roles and permissions", zap.Error(err))
	}

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	envelopeRepo := repository.NewEnvelopeRepository(db)
	stockRepo := repository.NewStockRepository(db)
	hierarchyRepo := repository.NewHierarchyRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	userService := service.NewUserService(userRepo)
	resolver := service.NewHierarchyResolver(hierarchyRepo)
	ledger := service.NewStockLedger(stockRepo, txManager)
	workflowService := service.NewWorkflowService(
		requestRepo, envelopeRepo, stockRepo, historyRepo,
		resolver, ledger, txManager, wsHub,
	)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService)
	workflowHandler := handler.NewWorkflowHandler(workflowService)
	stockHandler := handler.NewStockHandler(ledger)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	userHandler.RegisterRoutes(router.Group(""))
	workflowHandler.RegisterRoutes(router.Group(""))
	stockHandler.RegisterRoutes(router.Group(""))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info("server listening", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
