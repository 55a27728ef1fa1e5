package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gahoccode/vnstock-mcp/internal/config"
	"github.com/gahoccode/vnstock-mcp/internal/openai"
	"github.com/gahoccode/vnstock-mcp/internal/server"
	"github.com/gahoccode/vnstock-mcp/internal/storage"
	"github.com/gahoccode/vnstock-mcp/internal/vnstock"
)

func main() {
	cfg := config.Load()

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	// Ensure parent directory for the DB exists
	_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755)
	db, err := storage.OpenSQLite("file:" + cfg.DBPath + "?_fk=1")
	if err != nil {
		log.Fatal().Err(err).Msg("open sqlite")
	}
	defer db.Close()
	if err := storage.InitSchema(db); err != nil {
		log.Fatal().Err(err).Msg("init schema")
	}
	log.Info().Str("path", cfg.DBPath).Msg("usage db ready")

	commentator := openai.NewCommentator(cfg.OpenAIKey)
	if !commentator.Enabled() {
		log.Info().Msg("no OpenAI key set, commentary tool disabled")
	}

	data := vnstock.NewClient(log)
	srv := server.New(data, storage.NewStore(db), commentator, log)

	addr := ":" + cfg.Port
	if err := srv.Serve(addr); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}
