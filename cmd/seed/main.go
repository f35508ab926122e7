package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/royalty-service/internal/app"
	"github.com/kevin07696/royalty-service/internal/config"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/pkg/timeutil"
	"go.uber.org/zap"
)

// seedFile is the directory export loaded into a development database
type seedFile struct {
	Users   []*domain.User            `json:"users"`
	Credits []*domain.PlacementCredit `json:"credits"`
}

func main() {
	file := flag.String("file", "seed.json", "JSON file with users and placement credits")
	flag.Parse()

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read seed file: %v", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		log.Fatalf("Failed to parse seed file: %v", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := app.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer a.Close()

	now := timeutil.Now()
	err = a.Store.Tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, u := range seed.Users {
			if u.ID == "" || u.FullName == "" {
				return domain.ErrValidationFailed.WithDetail("reason", "users need id and full_name")
			}
			if u.Role == "" {
				u.Role = domain.UserRoleWriter
			}
			u.UpdatedAt = now
			// balances of existing users are kept; reconcile recomputes them
			if err := a.Users.Save(ctx, tx, u); err != nil {
				return fmt.Errorf("save user %s: %w", u.ID, err)
			}
		}
		for _, c := range seed.Credits {
			if c.ID == "" {
				c.ID = uuid.New().String()
			}
			if c.MatchMethod == "" {
				c.MatchMethod = domain.MatchMethodNone
			}
			c.CreatedAt = now
			c.UpdatedAt = now
			if err := a.Store.Credits.Create(ctx, tx, c); err != nil {
				return fmt.Errorf("create credit %s: %w", c.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		logger.Fatal("Seeding failed", zap.Error(err))
	}

	fmt.Printf("Seeded %d users and %d placement credits\n", len(seed.Users), len(seed.Credits))
	fmt.Println("Run: admin -action=link-credits -apply")
}
