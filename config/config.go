package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
		Redis struct {
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
		Mongo struct {
			URI        string `mapstructure:"uri"`
			Database   string `mapstructure:"database"`
			Collection string `mapstructure:"collection"`
		} `mapstructure:"mongo"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort       string        `mapstructure:"HTTPPort"`
		Timeout        time.Duration `mapstructure:"HTTPTimeout"`
		AllowedOrigins []string      `mapstructure:"allowedOrigins"`
	} `mapstructure:"server"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Kakao     KakaoConfig     `mapstructure:"kakao"`
	Search    SearchConfig    `mapstructure:"search"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Bookmarks BookmarksConfig `mapstructure:"bookmarks"`
	Session   SessionConfig   `mapstructure:"session"`
}

type JWTConfig struct {
	SecretKey       string        `mapstructure:"secretKey"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
	AccessTokenTTL  time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL time.Duration `mapstructure:"refreshTokenTTL"`
}

// KakaoConfig configures the Kakao Local REST API client.
type KakaoConfig struct {
	BaseURL    string        `mapstructure:"baseURL"`
	RESTAPIKey string        `mapstructure:"restAPIKey"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"maxFailures"`
	OpenTimeout time.Duration `mapstructure:"openTimeout"`
}

type SearchConfig struct {
	Query         string        `mapstructure:"query"`
	MaxPages      int           `mapstructure:"maxPages"`
	DefaultRadius int           `mapstructure:"defaultRadius"`
	CacheTTL      time.Duration `mapstructure:"cacheTTL"`
	// PlaceCategoryGroup scopes the keyword half of a free-text place search.
	PlaceCategoryGroup string `mapstructure:"placeCategoryGroup"`
}

type RecommendConfig struct {
	DefaultCount int    `mapstructure:"defaultCount"`
	Match        string `mapstructure:"match"`    // "substring" (default) or "segment"
	Fallback     string `mapstructure:"fallback"` // "all" or "exclude_only"
}

type BookmarksConfig struct {
	Backend string `mapstructure:"backend"` // "postgres" or "mongo"
}

type SessionConfig struct {
	IdleTTL time.Duration `mapstructure:"idleTTL"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Secrets such as EAT_KAKAO_RESTAPIKEY come from the environment (.env in development).
	v.SetEnvPrefix("eat")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range []string{
		"kakao.restAPIKey", "jwt.secretKey",
		"repositories.postgres.password", "repositories.redis.password", "repositories.mongo.uri",
	} {
		_ = v.BindEnv(key)
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.applyDefaults()
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Kakao.BaseURL == "" {
		c.Kakao.BaseURL = "https://dapi.kakao.com"
	}
	if c.Kakao.Timeout <= 0 {
		c.Kakao.Timeout = 5 * time.Second
	}
	if c.Search.Query == "" {
		c.Search.Query = "식당"
	}
	if c.Search.MaxPages <= 0 {
		c.Search.MaxPages = 3
	}
	if c.Search.DefaultRadius <= 0 {
		c.Search.DefaultRadius = 2000
	}
	if c.Search.PlaceCategoryGroup == "" {
		c.Search.PlaceCategoryGroup = "AT4"
	}
	if c.Recommend.DefaultCount <= 0 {
		c.Recommend.DefaultCount = 5
	}
	if c.Bookmarks.Backend == "" {
		c.Bookmarks.Backend = "postgres"
	}
	if c.Session.IdleTTL <= 0 {
		c.Session.IdleTTL = 30 * time.Minute
	}
}
