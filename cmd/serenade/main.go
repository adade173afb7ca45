package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/UtakataKyosui/serenade/internal/cache"
	"github.com/UtakataKyosui/serenade/internal/database"
	"github.com/UtakataKyosui/serenade/internal/gate"
	"github.com/UtakataKyosui/serenade/internal/publisher"
	"github.com/UtakataKyosui/serenade/internal/registry"
	"github.com/UtakataKyosui/serenade/internal/server"
)

var VERSION = "dev"

type Conf struct {
	Debug         bool   `env:"DEBUG"`
	PublicKey     string `env:"DISCORD_PUBLIC_KEY,notEmpty"`
	ApplicationID string `env:"DISCORD_APPLICATION_ID,notEmpty"`
	Token         string `env:"BOT_TOKEN,notEmpty"`
	DatabaseURL   string `env:"DATABASE_URL,notEmpty"`
	CacheURL      string `env:"REDIS_URL"`
	APIBase       string `env:"DISCORD_API_BASE"`
	Addr          string `env:"ADDR" envDefault:":3000"`
	ClockSkewSecs int    `env:"CLOCK_SKEW_SECONDS" envDefault:"300"`
}

func main() {
	_ = godotenv.Load()

	var conf Conf
	if err := env.Parse(&conf); err != nil {
		panic(err)
	}

	var l *slog.Logger
	if conf.Debug {
		l = slog.Default()
	} else {
		l = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	}

	keyBytes, err := hex.DecodeString(conf.PublicKey)
	if err != nil || len(keyBytes) != ed25519.PublicKeySize {
		l.Error("DISCORD_PUBLIC_KEY must be a 32-byte hex-encoded ed25519 public key")
		os.Exit(1)
	}

	db, err := database.NewDatabase(l, conf.DatabaseURL)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	var guildCache registry.Cache
	if conf.CacheURL != "" {
		c, err := cache.NewCache(conf.CacheURL, l)
		if err != nil {
			panic(err)
		}
		defer c.Close()
		guildCache = c
	}

	reg := registry.NewRegistry(l, db, guildCache)
	pub := publisher.NewPublisher(l, conf.APIBase, conf.ApplicationID, conf.Token)
	g := gate.New(l, ed25519.PublicKey(keyBytes), time.Duration(conf.ClockSkewSecs)*time.Second)

	srv := server.NewServer(l, g, reg, pub, conf.Addr)

	go func() {
		if err := srv.Start(); err != nil {
			l.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	l.Info("serenade started", "version", VERSION, "addr", conf.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		l.Error("error shutting down", "error", err)
	}
}
