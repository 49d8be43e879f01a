package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
	"github.com/zedmarley2/pars-tabela-sub000/internal/config"
	"github.com/zedmarley2/pars-tabela-sub000/internal/database"
	"github.com/zedmarley2/pars-tabela-sub000/internal/handlers"
	"github.com/zedmarley2/pars-tabela-sub000/internal/middleware"
	"github.com/zedmarley2/pars-tabela-sub000/internal/models"
	"github.com/zedmarley2/pars-tabela-sub000/internal/services"
	"github.com/zedmarley2/pars-tabela-sub000/internal/updater"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	// Load configuration
	cfg := config.Load()

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := models.AutoMigrate(database.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// The update pipeline invokes this mode when no SQL migration files
	// are present in the checkout
	if *migrateOnly {
		log.Println("Migrations applied")
		return
	}

	// Seed admin user if not exists
	seedAdminUser()

	orc := updater.New(cfg, database.DB)
	offsite := services.NewOffsiteService(cfg)

	// Recover runs orphaned by a previous crash or restart
	orc.SweepStale()

	// Background jobs: sweep abandoned runs every minute, mirror backups
	// offsite nightly
	scheduler := cron.New()
	scheduler.AddFunc("* * * * *", func() { orc.SweepStale() })
	if offsite.Enabled() {
		scheduler.AddFunc("30 3 * * *", func() { offsite.UploadPending() })
	}
	scheduler.Start()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Pars Tabela API v1.0",
		ServerHeader: "ParsTabela",
		BodyLimit:    50 * 1024 * 1024, // 50MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "parstabela-api",
		})
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg)
	catalogHandler := handlers.NewCatalogHandler()
	inquiryHandler := handlers.NewInquiryHandler()
	auditHandler := handlers.NewAuditHandler()
	backupHandler := handlers.NewBackupHandler(cfg, offsite)
	systemUpdateHandler := handlers.NewSystemUpdateHandler(cfg, orc)

	// API routes
	api := app.Group("/api")

	// Apply rate limiting to API routes (100 requests per minute by default)
	api.Use(middleware.RateLimiter(100, 1*time.Minute))

	// Public storefront routes
	api.Post("/auth/login", authHandler.Login)
	api.Get("/public/categories", catalogHandler.PublicCategories)
	api.Get("/public/products", catalogHandler.PublicProducts)
	api.Get("/public/products/:slug", catalogHandler.PublicProduct)
	api.Post("/public/quote", inquiryHandler.SubmitQuote)
	api.Post("/public/contact", inquiryHandler.SubmitContact)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired(cfg))

	// Auth routes
	protected.Post("/auth/logout", authHandler.Logout)
	protected.Get("/auth/me", authHandler.Me)
	protected.Post("/auth/refresh", authHandler.RefreshToken)
	protected.Put("/auth/password", authHandler.ChangePassword)

	// Catalog management routes
	categories := protected.Group("/categories")
	categories.Get("/", catalogHandler.ListCategories)
	categories.Post("/", catalogHandler.CreateCategory)
	categories.Put("/:id", catalogHandler.UpdateCategory)
	categories.Delete("/:id", middleware.AdminOnly(), catalogHandler.DeleteCategory)

	products := protected.Group("/products")
	products.Get("/", catalogHandler.ListProducts)
	products.Post("/", catalogHandler.CreateProduct)
	products.Put("/:id", catalogHandler.UpdateProduct)
	products.Delete("/:id", middleware.AdminOnly(), catalogHandler.DeleteProduct)

	// Quote request and contact message routes
	quotes := protected.Group("/quotes")
	quotes.Get("/", inquiryHandler.ListQuotes)
	quotes.Put("/:id", inquiryHandler.UpdateQuote)

	inquiries := protected.Group("/inquiries")
	inquiries.Get("/", inquiryHandler.ListInquiries)
	inquiries.Post("/:id/read", inquiryHandler.MarkInquiryRead)

	protected.Get("/notifications", inquiryHandler.ListNotifications)
	protected.Post("/notifications/read", inquiryHandler.MarkNotificationsRead)

	// Audit log routes (Admin only)
	protected.Get("/audit", middleware.AdminOnly(), auditHandler.List)

	// Backup routes (Admin only)
	backups := protected.Group("/backups", middleware.AdminOnly())
	backups.Get("/", backupHandler.List)
	backups.Get("/:id", backupHandler.Get)
	backups.Get("/:id/download", backupHandler.Download)
	backups.Post("/:id/upload", backupHandler.Upload)
	backups.Delete("/:id", backupHandler.Delete)
	backups.Post("/test-offsite", backupHandler.TestOffsite)

	// System update routes (Admin only)
	systemUpdate := protected.Group("/system/update", middleware.AdminOnly())
	systemUpdate.Get("/version", systemUpdateHandler.GetVersion)
	systemUpdate.Get("/check", systemUpdateHandler.CheckUpdate)
	systemUpdate.Get("/status", systemUpdateHandler.GetStatus)
	systemUpdate.Get("/logs", systemUpdateHandler.ListLogs)
	systemUpdate.Post("/start", systemUpdateHandler.StartUpdate)
	systemUpdate.Post("/rollback", systemUpdateHandler.StartRollback)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		scheduler.Stop()
		app.Shutdown()
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	log.Printf("Starting Pars Tabela API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func seedAdminUser() {
	var count int64
	database.DB.Model(&models.User{}).Where("user_type = ?", models.UserTypeAdmin).Count(&count)

	if count == 0 {
		log.Println("Creating default admin user...")

		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)

		admin := models.User{
			Username:            "admin",
			Password:            string(hashedPassword),
			Email:               "admin@parstabela.local",
			FullName:            "Sistem Yöneticisi",
			UserType:            models.UserTypeAdmin,
			ForcePasswordChange: true,
			IsActive:            true,
		}

		if err := database.DB.Create(&admin).Error; err != nil {
			log.Printf("Failed to create admin user: %v", err)
		} else {
			log.Println("Admin user created successfully (username: admin, password: admin123)")
		}
	}
}
