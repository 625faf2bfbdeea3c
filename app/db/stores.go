package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/FACorreiaa/go-eat-today/config"
)

const pingTimeout = 5 * time.Second

// NewRedis connects to Redis. It returns nil without error when no address
// is configured.
func NewRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	rc := cfg.Repositories.Redis
	if rc.Addr == "" {
		logger.Info("Redis not configured, using in-process bookmark notifications")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", rc.Addr, err)
	}

	logger.Info("Connected to Redis", slog.String("addr", rc.Addr), slog.Int("db", rc.DB))
	return client, nil
}

// NewMongo connects to MongoDB and returns the bookmarks collection.
func NewMongo(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mongo.Client, *mongo.Collection, error) {
	mc := cfg.Repositories.Mongo
	if mc.URI == "" {
		return nil, nil, fmt.Errorf("mongo bookmark backend selected but repositories.mongo.uri is empty")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mc.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongodb connection failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	database, collection := mc.Database, mc.Collection
	if database == "" {
		database = "eat_today"
	}
	if collection == "" {
		collection = "bookmarks"
	}

	logger.Info("Connected to MongoDB", slog.String("database", database), slog.String("collection", collection))
	return client, client.Database(database).Collection(collection), nil
}
