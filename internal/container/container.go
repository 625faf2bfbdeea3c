package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	database "github.com/FACorreiaa/go-eat-today/app/db"
	"github.com/FACorreiaa/go-eat-today/config"
	"github.com/FACorreiaa/go-eat-today/internal/api/auth"
	"github.com/FACorreiaa/go-eat-today/internal/api/bookmark"
	"github.com/FACorreiaa/go-eat-today/internal/api/poi"
	"github.com/FACorreiaa/go-eat-today/internal/api/recommend"
	"github.com/FACorreiaa/go-eat-today/internal/api/session"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Mongo  *mongo.Client

	AuthHandler      *auth.HandlerImpl
	POIHandler       *poi.HandlerImpl
	RecommendHandler *recommend.HandlerImpl
	BookmarkHandler  *bookmark.HandlerImpl
	SessionHandler   *session.HandlerImpl

	sessions *session.ServiceImpl
}

// NewContainer connects the stores and wires services and handlers. The
// postgres pool is required; Redis is optional and MongoDB is only used when
// it is the configured bookmark backend.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Pool, err = database.Init(ctx, dbConfig.ConnectionURL, logger)
	if err != nil {
		return nil, err
	}

	c.Redis, err = database.NewRedis(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	matcher, err := recommend.ParseMatcher(cfg.Recommend.Match)
	if err != nil {
		c.Close()
		return nil, err
	}
	fallback, err := recommend.ParseFallback(cfg.Recommend.Fallback)
	if err != nil {
		c.Close()
		return nil, err
	}
	picker := recommend.NewPicker(recommend.WithMatcher(matcher), recommend.WithFallback(fallback))
	logger.Info("Recommendation policy",
		slog.String("match", matcher.String()),
		slog.String("fallback", fallback.String()))

	bookmarkRepo, err := c.bookmarkRepository(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	var notifier bookmark.Notifier = bookmark.NewLocalNotifier()
	if c.Redis != nil {
		notifier = bookmark.NewRedisNotifier(c.Redis, logger)
	}

	authRepo := auth.NewRepositoryImpl(c.Pool, logger)
	authService := auth.NewServiceImpl(authRepo, cfg.JWT, logger)
	c.AuthHandler = auth.NewHandlerImpl(authService, logger)

	kakao := poi.NewKakaoClient(cfg.Kakao, logger)
	poiService := poi.NewServiceImpl(kakao, cfg.Search, logger)
	c.POIHandler = poi.NewHandlerImpl(poiService, cfg.Search.DefaultRadius, logger)

	c.RecommendHandler = recommend.NewHandlerImpl(picker, logger)

	bookmarkService := bookmark.NewServiceImpl(bookmarkRepo, notifier, picker, logger)
	c.BookmarkHandler = bookmark.NewHandlerImpl(bookmarkService, cfg.Search.DefaultRadius, logger)

	c.sessions = session.NewServiceImpl(poiService, picker, bookmarkService, cfg.Session.IdleTTL, logger)
	c.SessionHandler = session.NewHandlerImpl(c.sessions, logger)

	return c, nil
}

func (c *Container) bookmarkRepository(ctx context.Context) (bookmark.Repository, error) {
	switch c.Config.Bookmarks.Backend {
	case "postgres":
		return bookmark.NewRepositoryImpl(c.Pool, c.Logger), nil
	case "mongo":
		client, coll, err := database.NewMongo(ctx, c.Config, c.Logger)
		if err != nil {
			return nil, err
		}
		c.Mongo = client
		return bookmark.NewMongoRepository(coll, c.Logger), nil
	default:
		return nil, fmt.Errorf("unknown bookmarks backend %q", c.Config.Bookmarks.Backend)
	}
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.sessions != nil {
		c.sessions.Close()
	}
	if c.Mongo != nil {
		if err := c.Mongo.Disconnect(context.Background()); err != nil {
			c.Logger.Warn("MongoDB disconnect failed", slog.Any("error", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Redis close failed", slog.Any("error", err))
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}
