package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	SearchRequestsTotal    metric.Int64Counter
	SearchPagesTotal       metric.Int64Counter
	SearchDurationSeconds  metric.Float64Histogram
	PicksTotal             metric.Int64Counter
	PickFallbacksTotal     metric.Int64Counter
	BookmarkWritesTotal    metric.Int64Counter
	BookmarkWriteFailures  metric.Int64Counter
	DbQueryDurationSeconds metric.Float64Histogram
	DbQueryErrorsTotal     metric.Int64Counter
	SessionsActive         metric.Int64UpDownCounter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("go-eat-today")
		m := &AppMetrics{}

		m.SearchRequestsTotal = mustCounter(meter, "search_requests_total", "Total number of nearby and place searches", "{request}")
		m.SearchPagesTotal = mustCounter(meter, "search_pages_total", "Total number of upstream search pages fetched", "{page}")
		m.SearchDurationSeconds = mustHistogram(meter, "search_duration_seconds", "Duration of nearby search aggregation in seconds")
		m.PicksTotal = mustCounter(meter, "recommend_picks_total", "Total number of random picks", "{pick}")
		m.PickFallbacksTotal = mustCounter(meter, "recommend_fallbacks_total", "Picks where the include filter matched nothing", "{pick}")
		m.BookmarkWritesTotal = mustCounter(meter, "bookmark_writes_total", "Total number of bookmark writes", "{write}")
		m.BookmarkWriteFailures = mustCounter(meter, "bookmark_write_failures_total", "Bookmark writes rejected by the store", "{error}")
		m.DbQueryDurationSeconds = mustHistogram(meter, "db_query_duration_seconds", "Duration of database queries in seconds")
		m.DbQueryErrorsTotal = mustCounter(meter, "db_query_errors_total", "Total number of database query errors", "{error}")

		sessions, err := meter.Int64UpDownCounter("sessions_active", metric.WithDescription("Client sessions currently held in memory"), metric.WithUnit("{session}"))
		if err != nil {
			log.Fatalf("Metrics: Failed to create sessions_active: %v", err)
		}
		m.SessionsActive = sessions

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the global AppMetrics, initializing it against the current
// MeterProvider on first use. Without a configured provider the otel no-op
// meter is used, so callers never need a nil check.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}

func mustCounter(meter metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
	return c
}

func mustHistogram(meter metric.Meter, name, desc string) metric.Float64Histogram {
	h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
	return h
}
