package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/adapter/repo"
)

func main() {
	var keyFlag string
	flag.StringVar(&keyFlag, "key", "", "Anthropic API key (fallbacks to ANTHROPIC_API_KEY)")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "Anthropic API key is required via -key or ANTHROPIC_API_KEY")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	creds := repo.NewCredentialRepository(pool)

	execCtx, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()
	if err := creds.SetToken(execCtx, repo.ProviderAnthropic, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist anthropic api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Anthropic API key stored successfully")
}
