package bookmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/go-eat-today/app/db"
	"github.com/FACorreiaa/go-eat-today/app/observability/metrics"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

var ErrNotFound = errors.New("bookmark not found")

var _ Repository = (*RepositoryImpl)(nil)

// Repository is the remote per-user bookmark store. Writes are last write wins.
type Repository interface {
	List(ctx context.Context, userID string) (types.BookmarkSet, error)
	// Upsert inserts or overwrites the snapshot keyed by the place id. The
	// liked flag and creation time of an existing bookmark are preserved.
	Upsert(ctx context.Context, userID string, b types.Bookmark) error
	// Delete is idempotent.
	Delete(ctx context.Context, userID, placeID string) error
	Clear(ctx context.Context, userID string) error
	SetLiked(ctx context.Context, userID, placeID string, liked bool) error
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool database.Querier
}

func NewRepositoryImpl(pgpool database.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *RepositoryImpl) startSpan(ctx context.Context, name, userID string) (context.Context, trace.Span, func(err error)) {
	ctx, span := otel.Tracer("BookmarkRepo").Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "bookmarks"),
		attribute.String("db.user.id", userID),
	))
	start := time.Now()
	done := func(err error) {
		m := metrics.Get()
		attrs := metric.WithAttributes(attribute.String("query", name))
		m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
		if err != nil && !errors.Is(err, ErrNotFound) {
			m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
	return ctx, span, done
}

func (r *RepositoryImpl) List(ctx context.Context, userID string) (_ types.BookmarkSet, err error) {
	ctx, span, done := r.startSpan(ctx, "ListBookmarks", userID)
	defer func() { done(err) }()

	rows, err := r.pgpool.Query(ctx, `
		SELECT place, liked, created_at, updated_at
		FROM bookmarks
		WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer rows.Close()

	set := make(types.BookmarkSet)
	for rows.Next() {
		var (
			raw []byte
			b   types.Bookmark
		)
		if err = rows.Scan(&raw, &b.Liked, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark row: %w", err)
		}
		if err = json.Unmarshal(raw, &b.Place); err != nil {
			return nil, fmt.Errorf("failed to decode bookmark snapshot: %w", err)
		}
		set[b.ID.String()] = b
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookmark rows: %w", err)
	}

	span.SetAttributes(attribute.Int("bookmarks.count", len(set)))
	return set, nil
}

func (r *RepositoryImpl) Upsert(ctx context.Context, userID string, b types.Bookmark) (err error) {
	ctx, span, done := r.startSpan(ctx, "UpsertBookmark", userID)
	defer func() { done(err) }()
	span.SetAttributes(attribute.String("place.id", b.ID.String()))

	snapshot, err := json.Marshal(b.Place)
	if err != nil {
		return fmt.Errorf("failed to encode bookmark snapshot: %w", err)
	}

	_, err = r.pgpool.Exec(ctx, `
		INSERT INTO bookmarks (user_id, place_id, place, liked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, place_id)
		DO UPDATE SET place = EXCLUDED.place, updated_at = EXCLUDED.updated_at`,
		userID, b.ID.String(), snapshot, b.Liked, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert bookmark: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, userID, placeID string) (err error) {
	ctx, span, done := r.startSpan(ctx, "DeleteBookmark", userID)
	defer func() { done(err) }()
	span.SetAttributes(attribute.String("place.id", placeID))

	if _, err = r.pgpool.Exec(ctx, `DELETE FROM bookmarks WHERE user_id = $1 AND place_id = $2`, userID, placeID); err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) Clear(ctx context.Context, userID string) (err error) {
	ctx, span, done := r.startSpan(ctx, "ClearBookmarks", userID)
	defer func() { done(err) }()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM bookmarks WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear bookmarks: %w", err)
	}
	span.SetAttributes(attribute.Int64("rows.affected", tag.RowsAffected()))
	return nil
}

func (r *RepositoryImpl) SetLiked(ctx context.Context, userID, placeID string, liked bool) (err error) {
	ctx, span, done := r.startSpan(ctx, "SetBookmarkLiked", userID)
	defer func() { done(err) }()
	span.SetAttributes(attribute.String("place.id", placeID), attribute.Bool("liked", liked))

	tag, err := r.pgpool.Exec(ctx, `
		UPDATE bookmarks SET liked = $3, updated_at = now()
		WHERE user_id = $1 AND place_id = $2`, userID, placeID, liked)
	if err != nil {
		return fmt.Errorf("failed to update bookmark like: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
