package main

import (
	"log"

	"github.com/redis/go-redis/v9"

	"presence/backend/foundation/web"
	"presence/backend/internal/auth"
	"presence/backend/internal/commands"
	"presence/backend/internal/pkg/config"
	"presence/backend/internal/pkg/geo"
	"presence/backend/internal/pkg/repository/postgresql"
	"presence/backend/internal/router"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalln(err)
	}

	postgresDB := postgresql.NewDatabase(cfg.DBUsername, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DisableTLS)
	commands.MigrateUP(postgresDB)

	redisDB := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})

	authenticator := auth.NewAuth(cfg.JWTKey)

	checker := geo.Checker{
		DefaultAccuracy: cfg.Geo.DefaultAccuracyMeters,
		FixedMargin:     cfg.Geo.FixedMarginMeters,
	}

	r := router.NewRouter(
		web.NewApp(),
		postgresDB,
		redisDB,
		cfg.Web.APIHost,
		authenticator,
		cfg.Cache.TTL,
		cfg.Web.StorageTimeout,
		checker,
	)

	if err = r.Init(); err != nil {
		log.Fatalln("router init", err)
	}
}
