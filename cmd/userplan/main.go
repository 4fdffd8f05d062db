package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/adapter/repo"
)

func main() {
	var (
		emailFlag   string
		premiumFlag bool
		adminFlag   bool
	)

	flag.StringVar(&emailFlag, "email", "", "user email to update")
	flag.BoolVar(&premiumFlag, "premium", true, "grant or revoke premium access")
	flag.BoolVar(&adminFlag, "admin", false, "grant or revoke admin access")
	flag.Parse()

	email := strings.TrimSpace(strings.ToLower(emailFlag))
	if email == "" {
		exitWithError(errors.New("-email is required"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	users := repo.NewUserRepository(pool)

	execCtx, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()
	if err := users.SetFlagsByEmail(execCtx, email, premiumFlag, adminFlag); err != nil {
		exitWithError(fmt.Errorf("failed to update user flags: %w", err))
	}

	fmt.Printf("User %s updated: premium=%t admin=%t\n", email, premiumFlag, adminFlag)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
