package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"sitequill/admin"
	"sitequill/common"
	"sitequill/config"
	"sitequill/database"
	"sitequill/email"
	"sitequill/generator"
	"sitequill/store"
	"sitequill/wordpress"
	"sitequill/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	db, err := common.ConnectDb(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	contentStore := store.New(db)
	if cfg.AdminEmail != "" {
		if err := contentStore.EnsureAdmin(cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatal("Failed to create admin user: ", err)
		}
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	engine := workflow.New(
		contentStore,
		generator.NewClient(cfg.LMBaseURL, cfg.LMAPIKey, cfg.LMModel, httpClient),
		wordpress.NewClient(httpClient, cfg.MaxImageWidth),
		cfg.ImageBaseURL,
	)

	// Finish or undo accepts interrupted by the last shutdown.
	if batch, err := engine.Reconcile(context.Background(), cfg.ReconcileAfter); err != nil {
		log.Printf("Startup reconcile failed: %v", err)
	} else if len(batch.Items) > 0 {
		log.Printf("Startup reconcile: %d resolved, %d failed", batch.Succeeded(), batch.Failed())
	}

	router := gin.Default()

	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	router.Use(sessions.Sessions("sitequill-session", sessionStore))

	opts := []admin.Option{admin.WithReconcileAfter(cfg.ReconcileAfter)}
	if cfg.MailEnabled() {
		opts = append(opts, admin.WithNotifier(email.NewMailer(cfg)))
	}
	adminModule := admin.NewAdminModule(contentStore, engine, opts...)
	adminModule.RegisterRoutes(router)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Printf("Starting server on port %s...", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
