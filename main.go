package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"household-task-system/events"
	"household-task-system/logger"
	"household-task-system/models"
	"household-task-system/services"
)

func main() {
	// No .env file is fine, environment variables are read directly then.
	_ = godotenv.Load()

	if err := logger.Init(os.Getenv("LOG_DEV") == "true"); err != nil {
		panic(err)
	}
	defer logger.Sync()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL environment variable not set", nil)
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Error("failed to connect to database", err)
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.Task{},
		&models.TaskInstance{},
		&models.TaskInstanceCompletion{},
	); err != nil {
		logger.Error("failed to migrate database", err)
		os.Exit(1)
	}

	teamService := services.NewTeamService(db)
	taskService := services.NewTaskService(db)
	pointsService := services.NewPointsService(db)

	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		taskService.Events = events.NewPublisher(url)
		logger.Info("event publishing enabled")
	}

	// The query/mutation surface is mounted by the embedding deployment;
	// this process keeps the schema migrated and the engine wired until it
	// is told to stop.
	_ = teamService
	_ = pointsService

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("task engine ready")
	<-ctx.Done()
	logger.Info("shutting down")
}
