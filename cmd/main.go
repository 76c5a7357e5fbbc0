package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"project-service/internal/config"
	"project-service/internal/database/mongo"
	"project-service/internal/database/redis"
	"project-service/internal/event"
	"project-service/internal/handlers"
	"project-service/internal/middleware"
	"project-service/internal/repository"
	"project-service/internal/services"
	"project-service/pkg/discovery"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/registry", "log", "project_service")
	err := os.MkdirAll(logDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.ServiceConfig

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	app.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("Project Service is healthy")
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Initialize repositories
	projectRepo := repository.NewProjectRepository(mongo.Mongo_Database, "projects")
	requestRepo := repository.NewRequestRepository(mongo.Mongo_Database, "access_requests")
	userRepo := repository.NewUserRepository(mongo.Mongo_Database, "users", redis.Redis_Client, cfg.Redis.UserTTL)

	indexCtx, indexCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer indexCancel()

	if err := projectRepo.InitializeIndexes(indexCtx); err != nil {
		log.Fatalf("Failed to initialize project indexes: %v", err)
	}
	if err := requestRepo.InitializeIndexes(indexCtx); err != nil {
		log.Fatalf("Failed to initialize request indexes: %v", err)
	}
	if err := userRepo.InitializeIndexes(indexCtx); err != nil {
		log.Fatalf("Failed to initialize user indexes: %v", err)
	}

	// Initialize event publisher
	eventPublisher, err := event.NewEventPublisher(cfg.RabbitMQ.URI)
	if err != nil {
		log.Printf("Warning: Failed to initialize event publisher: %v", err)
		eventPublisher, _ = event.NewEventPublisher("")
	}

	// Initialize services
	policy := services.NewAccessPolicy()
	projectService := services.NewProjectService(projectRepo, requestRepo, userRepo, policy, eventPublisher)
	requestService := services.NewRequestService(projectRepo, requestRepo, policy, eventPublisher)

	// Initialize event consumer for the users read model
	eventConsumer, err := event.NewEventConsumer(cfg.RabbitMQ.URI, cfg.RabbitMQ.QueueName, userRepo)
	if err != nil {
		log.Printf("Warning: Failed to initialize event consumer: %v", err)
	} else {
		if err := eventConsumer.Start(); err != nil {
			log.Printf("Warning: Failed to start event consumer: %v", err)
			eventConsumer.Close()
		} else {
			log.Println("Successfully started event consumer for user events")
			defer eventConsumer.Close()
		}
	}

	// Authenticated routes
	app.Use("/protected", middleware.Authenticate(cfg.Auth.JWTSecret))

	projectHandler := handlers.NewProjectHandler(projectService, requestService)
	projectHandler.RegisterRoutes(app)

	requestHandler := handlers.NewRequestHandler(requestService)
	requestHandler.RegisterRoutes(app)

	if err := discovery.ServiceDiscovery.Register(); err != nil {
		log.Printf("Warning: Failed to register with service discovery: %v", err)
	}

	shutdownChan := make(chan os.Signal, 1)
	doneChan := make(chan bool, 1)

	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := app.Listen(fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
		doneChan <- true
	}()

	<-shutdownChan
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	if eventPublisher != nil {
		if err := eventPublisher.Close(); err != nil {
			log.Printf("Error closing event publisher: %v", err)
		}
	}

	mongo.DisconnectMongo()

	if discovery.ServiceDiscovery != nil {
		if err := discovery.ServiceDiscovery.Deregister(); err != nil {
			log.Printf("Error deregistering from service discovery: %v", err)
		}
	}

	<-doneChan
	log.Println("Server shutdown complete")
}
