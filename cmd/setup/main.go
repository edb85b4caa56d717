package main

import (
	"context"
	"log"

	"github.com/jackc/pgx/v4/pgxpool"

	"story-ai-billing/internal/config"
	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/infra/db/postgres"
	"story-ai-billing/internal/infra/redis"
)

// This script resets the database and cache into a clean, predictable state
// for manual end-to-end testing.
func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 5)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer redisClient.Close()

	log.Println("--- Starting E2E Environment Setup ---")

	log.Println("[1/3] Wiping Redis cache...")
	if err := redisClient.FlushDB(ctx); err != nil {
		log.Fatalf("failed to flush redis: %v", err)
	}

	log.Println("[2/3] Resetting database schema...")
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}
	_, err = pool.Exec(ctx, `
		TRUNCATE users, payments, recurring_profiles RESTART IDENTITY CASCADE;
	`)
	if err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	log.Println("[3/3] Seeding test users...")
	seedUsers(ctx, pool)

	log.Println("--- E2E Environment Setup Complete ---")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) {
	userRepo := postgres.NewUserRepo(pool)

	for _, seed := range []struct {
		id, email, language string
		credits             int64
	}{
		{"e2e-reader-en", "reader-en@example.com", "en", 0},
		{"e2e-reader-ru", "reader-ru@example.com", "ru", 14},
		{"e2e-subscriber", "subscriber@example.com", "en", 100},
	} {
		u, err := model.NewUser(seed.id, seed.email, seed.language)
		if err != nil {
			log.Printf("failed to build user %s: %v", seed.id, err)
			continue
		}
		if err := userRepo.Save(ctx, nil, u); err != nil {
			log.Printf("failed to save user %s: %v", seed.id, err)
			continue
		}
		if seed.credits > 0 {
			if err := userRepo.IncrementCredits(ctx, nil, seed.id, seed.credits); err != nil {
				log.Printf("failed to credit user %s: %v", seed.id, err)
			}
		}
	}
}
