package main

import (
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"authsvc/internal/auth"
	"authsvc/internal/config"
	"authsvc/internal/database"
	"authsvc/internal/email"
	"authsvc/internal/logging"
	"authsvc/internal/redisx"
	"authsvc/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logOutput := io.Writer(os.Stdout)
	if cfg.LogFile != "" {
		fileWriter, err := logging.NewRotatingFileWriter(cfg.LogFile, 50<<20)
		if err != nil {
			log.Fatalf("log setup error: %v", err)
		}
		defer fileWriter.Close()
		logOutput = io.MultiWriter(os.Stdout, fileWriter)
	}
	log.SetOutput(logOutput)
	log.SetFlags(log.LstdFlags | log.LUTC | log.Lshortfile)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer db.Close()

	redisClient, err := redisx.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis error: %v", err)
	}
	defer redisClient.Close()

	users := auth.NewUserRepository(db)
	hasher := auth.NewBcryptHasher()
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.AppName, cfg.AccessTokenTTL, cfg.MagicLinkTTL)
	otps := auth.NewOTPGenerator()
	otps.TTL = cfg.OTPTTL
	totp := auth.NewTOTPCodec(cfg.AppName)
	backup := auth.NewBackupCodeManager()
	mailer := email.NewDispatcher(email.NewSender(cfg.Email))
	rateLimiter := &auth.RateLimiter{Redis: redisClient}

	svc := auth.NewService(users, hasher, tokens, otps, totp, backup, mailer, cfg.BaseURL)
	api := server.NewServer(cfg, svc, tokens, rateLimiter)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
