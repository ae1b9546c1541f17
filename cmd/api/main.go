package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auth-api-nosql/internal/config"
	"github.com/auth-api-nosql/internal/infrastructure/dynamo"
	googleauth "github.com/auth-api-nosql/internal/infrastructure/google"
	jwtinfra "github.com/auth-api-nosql/internal/infrastructure/jwt"
	"github.com/auth-api-nosql/internal/infrastructure/smtp"
	snsinfra "github.com/auth-api-nosql/internal/infrastructure/sns"
	transporthttp "github.com/auth-api-nosql/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	templateRepo := dynamo.NewEmailTemplateRepo(dynamoClient, cfg.DynamoTables.EmailTemplates)
	if err := templateRepo.SeedTemplates(context.Background()); err != nil {
		log.Printf("WARN: could not seed email templates: %v", err)
	}

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	// SMTP mailer, rendering from the seeded templates.
	mailer := smtp.NewMailer(cfg, templateRepo)

	// SNS SMS sender (optional — graceful fallback).
	var smsSender snsinfra.SMSSender
	if sender, err := snsinfra.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	phoneVerificationRepo := dynamo.NewPhoneVerificationRepo(dynamoClient, cfg.DynamoTables.PhoneVerifications)
	phoneVerifier := snsinfra.NewPhoneVerifier(smsSender, phoneVerificationRepo, cfg.OTPLength, cfg.OTPValidFor)

	deps := &transporthttp.Deps{
		UserRepo:      dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		SessionRepo:   dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		TemplateRepo:  templateRepo,
		Mailer:        mailer,
		PhoneVerifier: phoneVerifier,
		JWTProvider:   jwtProvider,
		GoogleAuth:    googleauth.NewVerifier(cfg.GoogleClientID),
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
