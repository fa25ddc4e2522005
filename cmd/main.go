package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"user-service/internal/api"
	"user-service/internal/config"
	"user-service/internal/repository"
	"user-service/internal/service"
	"user-service/migrations"
)

func connectDB(dsn, dbname string) (*sql.DB, error) {
	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("mysql", dsn)
		if err == nil {
			err = db.Ping()
			if err == nil {
				log.Printf("Connected to DB %s", dbname)
				return db, nil
			}
		}
		log.Printf("Retry %d: Failed to connect to DB %s: %v", i+1, dbname, err)
		time.Sleep(3 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to DB %s after retries: %v", dbname, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	db, err := connectDB(cfg.DSN(), cfg.Database.Name)
	if err != nil {
		panic(err)
	}

	err = migrations.AutoMigrateUsers(3, db)
	if err != nil {
		log.Fatalf("Failed to migrate users table: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})

	kafkaWriter := config.NewKafkaWriter(cfg.KafkaBrokers(), cfg.Kafka.Topic)

	userRepo := repository.NewUserRepository(db)
	userService := service.NewUserService(*userRepo, rdb, kafkaWriter)
	userHandler := api.NewUserHandler(*userService)

	e := echo.New()

	limiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(1),
				Burst:     3,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(context echo.Context) (string, error) {
			// for local
			return context.Request().RemoteAddr, nil
			// for production
			// return context.Request().Header.Get(echo.HeaderXRealIP), nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.RateLimiterWithConfig(limiterConfig))

	// Routes
	e.POST("/users", userHandler.CreateUser)
	e.GET("/users", userHandler.ListUsers)
	e.GET("/users/:id", userHandler.GetUserByID)
	e.PUT("/users/:id", userHandler.UpdateUser)
	e.DELETE("/users/:id", userHandler.DeleteUser)

	e.GET("/users/health", func(c echo.Context) error {
		return c.JSON(200, map[string]interface{}{
			"status":  "ok",
			"service": "user-service",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// Start server
	e.Logger.Fatal(e.Start(cfg.Server.Addr))
}
