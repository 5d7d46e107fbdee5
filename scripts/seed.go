//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hugh/nerlude/internal/auth"
	"github.com/hugh/nerlude/internal/database"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/pkg/config"
	"github.com/hugh/nerlude/pkg/crypto"
	"github.com/hugh/nerlude/pkg/util"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	keyring, err := crypto.ParseKeyring(cfg.Encryption.Keys, cfg.Encryption.PrimaryKeyID)
	if err != nil {
		log.Fatalf("failed to load encryption keys: %v", err)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, nil, keyring.Primary())

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")

	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "admin123!"
	}
	if name == "" {
		name = "Admin"
	}

	ctx := context.Background()
	resp, err := authService.Register(ctx, auth.RegisterInput{
		Email:         email,
		Password:      password,
		Name:          name,
		WorkspaceName: "Demo Workspace",
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			fmt.Printf("Admin user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin user: %v", err)
	}

	project := models.Project{
		WorkspaceID: resp.Workspace.ID,
		Name:        "Marketing site",
		Description: "Public website and newsletter",
		Status:      models.ProjectStatusActive,
		CreatedBy:   resp.User.ID,
	}
	if err := db.WithContext(ctx).Create(&project).Error; err != nil {
		log.Fatalf("failed to create project: %v", err)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	renews := func(days int) *time.Time {
		d := today.AddDate(0, 0, days)
		return &d
	}
	services := []models.Service{
		{Name: "Vercel", Category: "hosting", CostAmount: decimal.RequireFromString("20"), CostFrequency: models.CostMonthly, RenewalDate: renews(3)},
		{Name: "Cloudflare", Category: "dns", CostAmount: decimal.RequireFromString("240"), CostFrequency: models.CostYearly, RenewalDate: renews(21)},
		{Name: "Mailchimp", Category: "email", CostAmount: decimal.RequireFromString("45"), CostFrequency: models.CostQuarterly},
	}
	for i := range services {
		services[i].ProjectID = project.ID
		services[i].CostCurrency = "USD"
		services[i].Status = models.ServiceStatusActive
		if err := db.WithContext(ctx).Create(&services[i]).Error; err != nil {
			log.Fatalf("failed to create service %s: %v", services[i].Name, err)
		}
	}

	fmt.Printf("Admin user created successfully!\n")
	fmt.Printf("Email: %s\n", resp.User.Email)
	fmt.Printf("Workspace: %s\n", resp.Workspace.Name)
	fmt.Printf("Project: %s (%d services)\n", project.Name, len(services))
	fmt.Printf("Token: %s\n", resp.Token)
}
