// Package config loads process configuration from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Config holds settings shared by the API and stream binaries.
type Config struct {
	// TableName is the single DynamoDB table. Default: "salestrack"
	TableName string

	// Backend selects the store implementation. Default: "dynamodb"
	Backend string

	// DynamoDBEndpoint overrides the service endpoint, e.g. DynamoDB Local.
	DynamoDBEndpoint string

	// Region is the AWS region. Empty defers to the SDK's resolution chain.
	Region string

	// Port is the HTTP listen port. Default: "8080"
	Port string

	JWTSecret string
	JWTIssuer string

	// AllowedOrigins for CORS. Default: ["*"]
	AllowedOrigins []string

	// PrefillQuota is the active prefill ceiling per creator. Zero uses the
	// quota package default.
	PrefillQuota int

	// InviteTTL is how long an invite stays redeemable. Zero uses the share
	// package default.
	InviteTTL time.Duration

	LogLevel slog.Level
}

// Load reads the environment after applying any .env files that exist.
// Variables already set in the process environment win over file values.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		TableName:        getEnv("SALESTRACK_TABLE", "salestrack"),
		Backend:          strings.ToLower(getEnv("SALESTRACK_STORE", BackendDynamoDB)),
		DynamoDBEndpoint: getEnv("DYNAMODB_ENDPOINT", ""),
		Region:           getEnv("AWS_REGION", ""),
		Port:             getEnv("PORT", "8080"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", ""),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "*")),
	}

	var err error
	if cfg.PrefillQuota, err = getInt("PREFILL_QUOTA"); err != nil {
		return Config{}, err
	}
	if v := getEnv("INVITE_TTL", ""); v != "" {
		if cfg.InviteTTL, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("INVITE_TTL: %w", err)
		}
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the binaries cannot start with.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendDynamoDB, BackendMemory:
	default:
		return fmt.Errorf("SALESTRACK_STORE: unknown backend %q", c.Backend)
	}
	if c.PrefillQuota < 0 {
		return errors.New("PREFILL_QUOTA must not be negative")
	}
	if c.InviteTTL < 0 {
		return errors.New("INVITE_TTL must not be negative")
	}
	return nil
}

// Logger returns a JSON slog logger at the configured level.
func (c Config) Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel}))
}

// AWS loads the SDK configuration, applying Region when set.
func (c Config) AWS(ctx context.Context) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// DynamoDB builds a client, honoring DynamoDBEndpoint.
func (c Config) DynamoDB(ctx context.Context) (*dynamodb.Client, error) {
	cfg, err := c.AWS(ctx)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if c.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(c.DynamoDBEndpoint)
		}
	}), nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return fallback
}

func getInt(key string) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
