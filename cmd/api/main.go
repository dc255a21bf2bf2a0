package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"headline_aggregator/internal/config"
	"headline_aggregator/internal/handler"
	"headline_aggregator/internal/query"
	"headline_aggregator/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	articleStore := postgres.NewArticleStore(db)
	newsQuery := query.NewService(articleStore)
	newsHandler := handler.NewNewsHandler(newsQuery)

	r := gin.Default()

	allowedOrigins := []string{"http://localhost:3000"}
	allowedOrigins = append(allowedOrigins, cfg.Server.AllowedOrigins...)

	r.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Content-Type", "X-API-Key"},
	}))

	r.GET("/health", newsHandler.GetHealth)

	authed := r.Group("/", handler.APIKeyAuth(cfg.Server.APIKeys))
	authed.GET("/news", newsHandler.GetNews)

	logger.Info("starting api server", "addr", cfg.Server.Addr)
	if err := r.Run(cfg.Server.Addr); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
