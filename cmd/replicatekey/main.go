package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"img2img/internal/infra"
	"img2img/internal/infra/credentials"
)

func main() {
	var (
		tokenFlag string
		labelFlag string
	)
	flag.StringVar(&tokenFlag, "token", "", "Replicate API token (fallbacks to REPLICATE_API_TOKEN)")
	flag.StringVar(&labelFlag, "label", "", "optional label stored alongside the token")
	flag.Parse()

	_ = godotenv.Load()

	token := strings.TrimSpace(tokenFlag)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN"))
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "replicate api token is required via -token or REPLICATE_API_TOKEN")
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

	logger := infra.NewLogger("cli").With().Str("cmd", "replicatekey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	props := map[string]any{"updated_at": time.Now().UTC().Format(time.RFC3339)}
	if label := strings.TrimSpace(labelFlag); label != "" {
		props["label"] = label
	}
	if err := store.SetReplicateAPIToken(ctx, token, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist replicate api token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("REPLICATE API token stored successfully")
}
