// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"taskvault/backend/internal/config"
	"taskvault/backend/internal/db"
	"taskvault/backend/internal/security"
	taskdomain "taskvault/backend/internal/task/domain"
	taskrepo "taskvault/backend/internal/task/repository"
	userdomain "taskvault/backend/internal/user/domain"
	userrepo "taskvault/backend/internal/user/repository"
)

const (
	devUserEmail = "dev@example.com"
	devPassword  = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(conn)
	tasks := taskrepo.NewPostgresRepository(conn)

	existing, err := users.FindByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		log.Printf("seed: %s already exists, nothing to do", devUserEmail)
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	digest, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed: hash password: %v", err)
	}

	now := time.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        devUserEmail,
		PasswordHash: digest,
		FirstName:    "Dev",
		LastName:     "User",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("seed: create user: %v", err)
	}

	due := now.Add(72 * time.Hour)
	samples := []*taskdomain.Task{
		{
			Title:       "Try out the API",
			Description: "Login as dev@example.com and poke around.",
			Status:      taskdomain.StatusPending,
			Priority:    taskdomain.PriorityMedium,
		},
		{
			Title:    "File the quarterly report",
			Status:   taskdomain.StatusInProgress,
			Priority: taskdomain.PriorityHigh,
			DueDate:  &due,
		},
		{
			Title:    "Read the onboarding doc",
			Status:   taskdomain.StatusCompleted,
			Priority: taskdomain.PriorityLow,
		},
	}
	for _, t := range samples {
		t.ID = uuid.New().String()
		t.UserID = user.ID
		t.CreatedAt = now
		t.UpdatedAt = now
		if t.Status == taskdomain.StatusCompleted {
			t.CompletedAt = &now
		}
		if err := tasks.Create(ctx, t); err != nil {
			log.Fatalf("seed: create task %q: %v", t.Title, err)
		}
	}

	log.Printf("seed: created %s with %d tasks (password: %s)", devUserEmail, len(samples), devPassword)
}
