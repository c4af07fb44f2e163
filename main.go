package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"reward-settlement-system/handlers"
	"reward-settlement-system/middleware"
	"reward-settlement-system/models"
	"reward-settlement-system/services"
	"reward-settlement-system/utils"
	"reward-settlement-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // badge art uploads
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-Member-Address, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Submission{},
		&models.MemberMirror{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Ledger connection ---
	rpcURL := os.Getenv("LEDGER_RPC_URL")
	if rpcURL == "" {
		log.Fatal("LEDGER_RPC_URL environment variable not set")
	}
	contractAddress := os.Getenv("CONTRACT_ADDRESS")
	if contractAddress == "" {
		log.Fatal("CONTRACT_ADDRESS environment variable not set")
	}
	operatorKey := os.Getenv("OPERATOR_PRIVATE_KEY")
	if operatorKey == "" {
		log.Fatal("OPERATOR_PRIVATE_KEY environment variable not set")
	}

	ledger, err := services.NewEVMLedgerGateway(ctx, rpcURL, contractAddress, operatorKey)
	if err != nil {
		log.Fatal("failed to connect to ledger:", err)
	}

	confirmTimeout := services.DefaultConfirmTimeout
	if v := os.Getenv("CONFIRM_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			log.Fatal("invalid CONFIRM_TIMEOUT_SECONDS:", v)
		}
		confirmTimeout = time.Duration(secs) * time.Second
	}

	store := services.NewSubmissionStore(db)
	settlement := services.NewSettlementService(store, ledger, confirmTimeout)
	reconciler := services.NewReconciliationService(db, store, ledger, 2*confirmTimeout)

	// --- Ledger mirror polling + periodic reconciliation ---
	syncClient := workers.NewLedgerSyncClient(db, store, ledger)
	go workers.PollLedger(ctx, syncClient, 30*time.Second)
	reconciler.StartReconciliationScheduler(ctx, 10*time.Minute)

	handlers.SetupMemberRoutes(app, store, settlement, ledger)
	handlers.SetupOperatorRoutes(app, store, settlement, reconciler)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Ledger mirror polling running (every 30s)")
	log.Println("✅ Reconciliation pass scheduled (every 10m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", strings.Join(allowedOriginsList, ","))

	<-ctx.Done()
	log.Println("Shutting down server...")
}
