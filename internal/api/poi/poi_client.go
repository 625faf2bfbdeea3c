package poi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/FACorreiaa/go-eat-today/config"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

// PageSize is the fixed page size of the Kakao keyword search. A shorter page
// marks the end of the result set.
const PageSize = 15

const (
	keywordPath = "/v2/local/search/keyword.json"
	addressPath = "/v2/local/search/address.json"
)

var _ Client = (*KakaoClient)(nil)

// Client is the upstream local search API.
type Client interface {
	SearchKeyword(ctx context.Context, q KeywordQuery) (*Page, error)
	SearchAddress(ctx context.Context, query string) (*Page, error)
}

// KeywordQuery describes one keyword search request. Center and Radius are
// optional; Page starts at 1.
type KeywordQuery struct {
	Query         string
	Center        *types.Coordinate
	Radius        int
	Page          int
	CategoryGroup string
}

// Page is one page of upstream results. DocumentCount is the raw number of
// documents returned, including any that could not be mapped to a place.
type Page struct {
	Places        []types.Place
	DocumentCount int
	IsEnd         bool
}

// APIError is returned for non-2xx upstream responses.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kakao local api returned status %d: %s", e.Status, e.Body)
}

type KakaoClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

func NewKakaoClient(cfg config.KakaoConfig, logger *slog.Logger) *KakaoClient {
	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "kakao-local",
		Timeout: cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// 4xx means our request was wrong, not that the upstream is unhealthy.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &KakaoClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.RESTAPIKey,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
		logger:  logger,
	}
}

func (c *KakaoClient) SearchKeyword(ctx context.Context, q KeywordQuery) (*Page, error) {
	params := url.Values{}
	params.Set("query", q.Query)
	if q.Center != nil {
		params.Set("x", strconv.FormatFloat(q.Center.Longitude, 'f', -1, 64))
		params.Set("y", strconv.FormatFloat(q.Center.Latitude, 'f', -1, 64))
	}
	if q.Radius > 0 {
		params.Set("radius", strconv.Itoa(q.Radius))
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.CategoryGroup != "" {
		params.Set("category_group_code", q.CategoryGroup)
	}
	return c.get(ctx, keywordPath, params)
}

func (c *KakaoClient) SearchAddress(ctx context.Context, query string) (*Page, error) {
	params := url.Values{}
	params.Set("query", query)
	return c.get(ctx, addressPath, params)
}

func (c *KakaoClient) get(ctx context.Context, path string, params url.Values) (*Page, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, path, params)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Page), nil
}

func (c *KakaoClient) do(ctx context.Context, path string, params url.Values) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "KakaoAK "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kakao request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var kr kakaoResponse
	if err := json.NewDecoder(resp.Body).Decode(&kr); err != nil {
		return nil, fmt.Errorf("failed to decode kakao response: %w", err)
	}

	page := &Page{
		Places:        make([]types.Place, 0, len(kr.Documents)),
		DocumentCount: len(kr.Documents),
		IsEnd:         kr.Meta.IsEnd,
	}
	for _, doc := range kr.Documents {
		p, err := doc.toPlace()
		if err != nil {
			c.logger.DebugContext(ctx, "Skipping malformed document", slog.String("id", doc.ID), slog.Any("error", err))
			continue
		}
		page.Places = append(page.Places, p)
	}
	return page, nil
}

type kakaoResponse struct {
	Meta struct {
		TotalCount    int  `json:"total_count"`
		PageableCount int  `json:"pageable_count"`
		IsEnd         bool `json:"is_end"`
	} `json:"meta"`
	Documents []kakaoDocument `json:"documents"`
}

// kakaoDocument covers both keyword and address documents.
type kakaoDocument struct {
	ID                string `json:"id"`
	PlaceName         string `json:"place_name"`
	CategoryName      string `json:"category_name"`
	CategoryGroupCode string `json:"category_group_code"`
	Phone             string `json:"phone"`
	AddressName       string `json:"address_name"`
	RoadAddressName   string `json:"road_address_name"`
	RoadAddress       *struct {
		AddressName string `json:"address_name"`
	} `json:"road_address"`
	X        string `json:"x"`
	Y        string `json:"y"`
	PlaceURL string `json:"place_url"`
	Distance string `json:"distance"`
}

func (d kakaoDocument) toPlace() (types.Place, error) {
	lon, err := strconv.ParseFloat(d.X, 64)
	if err != nil {
		return types.Place{}, fmt.Errorf("invalid x %q: %w", d.X, err)
	}
	lat, err := strconv.ParseFloat(d.Y, 64)
	if err != nil {
		return types.Place{}, fmt.Errorf("invalid y %q: %w", d.Y, err)
	}

	p := types.Place{
		ID:                types.PlaceID(d.ID),
		Name:              d.PlaceName,
		RoadAddress:       d.RoadAddressName,
		Address:           d.AddressName,
		CategoryName:      d.CategoryName,
		CategoryGroupCode: d.CategoryGroupCode,
		Phone:             d.Phone,
		Coordinate:        types.Coordinate{Latitude: lat, Longitude: lon},
		DetailURL:         d.PlaceURL,
	}
	// Address documents carry neither an id nor a place name.
	if p.RoadAddress == "" && d.RoadAddress != nil {
		p.RoadAddress = d.RoadAddress.AddressName
	}
	if p.Name == "" {
		p.Name = d.AddressName
	}
	if p.ID == "" {
		p.ID = types.PlaceID("address:" + d.X + "," + d.Y)
	}
	if d.Distance != "" {
		if dist, err := strconv.Atoi(d.Distance); err == nil {
			p.Distance = &dist
		}
	}
	return p, nil
}
