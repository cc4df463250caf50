package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"img2img/internal/infra"
	"img2img/internal/sqlinline"
)

func main() {
	var dsnFlag string
	flag.StringVar(&dsnFlag, "dsn", "", "PostgreSQL connection string (fallbacks to DATABASE_URL)")
	flag.Parse()

	_ = godotenv.Load()

	dsn := strings.TrimSpace(dsnFlag)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	logger := infra.NewLogger("cli").With().Str("cmd", "migrate").Logger()

	marker, schema, err := infra.ExtractMarker(sqlinline.Schema)
	if err != nil {
		logger.Fatal().Err(err).Msg("schema is missing its marker")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		logger.Fatal().Err(err).Str("sql", marker).Msg("apply schema")
	}
	logger.Info().Str("sql", marker).Msg("schema applied")
}
