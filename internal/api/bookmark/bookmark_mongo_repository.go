package bookmark

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-eat-today/internal/types"
)

var _ Repository = (*MongoRepository)(nil)

// mongoBookmark is one document per (user, place). The document id joins
// both so upserts by place id stay idempotent.
type mongoBookmark struct {
	ID        string      `bson:"_id"`
	UserID    string      `bson:"user_id"`
	PlaceID   string      `bson:"place_id"`
	Place     types.Place `bson:"place"`
	Liked     bool        `bson:"liked"`
	CreatedAt time.Time   `bson:"created_at"`
	UpdatedAt time.Time   `bson:"updated_at"`
}

func documentID(userID, placeID string) string {
	return userID + ":" + placeID
}

// MongoRepository stores bookmarks in a MongoDB collection.
type MongoRepository struct {
	logger     *slog.Logger
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(collection *mongo.Collection, logger *slog.Logger) *MongoRepository {
	return &MongoRepository{
		logger:     logger,
		collection: collection,
		now:        time.Now,
	}
}

func (r *MongoRepository) span(ctx context.Context, name, userID string) (context.Context, trace.Span) {
	return otel.Tracer("BookmarkMongoRepo").Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "mongodb"),
		attribute.String("db.mongodb.collection", r.collection.Name()),
		attribute.String("db.user.id", userID),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (r *MongoRepository) List(ctx context.Context, userID string) (types.BookmarkSet, error) {
	ctx, span := r.span(ctx, "ListBookmarks", userID)
	defer span.End()

	cur, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to query bookmarks: %w", err))
	}
	var docs []mongoBookmark
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fail(span, fmt.Errorf("failed to decode bookmarks: %w", err))
	}

	set := make(types.BookmarkSet, len(docs))
	for _, d := range docs {
		set[d.PlaceID] = types.Bookmark{
			Place:     d.Place,
			Liked:     d.Liked,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		}
	}
	return set, nil
}

func (r *MongoRepository) Upsert(ctx context.Context, userID string, b types.Bookmark) error {
	ctx, span := r.span(ctx, "UpsertBookmark", userID)
	defer span.End()

	placeID := b.ID.String()
	update := bson.M{
		"$set": bson.M{
			"user_id":    userID,
			"place_id":   placeID,
			"place":      b.Place,
			"updated_at": r.now().UTC(),
		},
		"$setOnInsert": bson.M{
			"liked":      b.Liked,
			"created_at": b.CreatedAt.UTC(),
		},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": documentID(userID, placeID)}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fail(span, fmt.Errorf("failed to upsert bookmark: %w", err))
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, userID, placeID string) error {
	ctx, span := r.span(ctx, "DeleteBookmark", userID)
	defer span.End()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": documentID(userID, placeID)}); err != nil {
		return fail(span, fmt.Errorf("failed to delete bookmark: %w", err))
	}
	return nil
}

func (r *MongoRepository) Clear(ctx context.Context, userID string) error {
	ctx, span := r.span(ctx, "ClearBookmarks", userID)
	defer span.End()

	res, err := r.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fail(span, fmt.Errorf("failed to clear bookmarks: %w", err))
	}
	span.SetAttributes(attribute.Int64("deleted", res.DeletedCount))
	return nil
}

func (r *MongoRepository) SetLiked(ctx context.Context, userID, placeID string, liked bool) error {
	ctx, span := r.span(ctx, "SetBookmarkLiked", userID)
	defer span.End()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": documentID(userID, placeID)},
		bson.M{"$set": bson.M{"liked": liked, "updated_at": r.now().UTC()}},
	)
	if err != nil {
		return fail(span, fmt.Errorf("failed to update bookmark like: %w", err))
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
