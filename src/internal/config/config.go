package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultConnectionString = "Host=localhost;Port=5432;Database=membership_payments_db;Username=postgres;Password=postgres;Timeout=30;CommandTimeout=30"
const defaultChannelID = "AspoiAdmin"
const defaultReferencePrefix = "ASPOI"

type Config struct {
	HTTPAddr           string
	StoreDriver        string
	DatabaseDSN        string
	MigrationsDir      string
	ChannelID          string
	ChannelKey         string
	PricingCatalogPath string
	DefaultProvider    string
	BaseURL            string
	ReferencePrefix    string
	GatewayTimeout     time.Duration
	OutcomeCacheSize   int
	Paystack           PaystackConfig
	Flutterwave        FlutterwaveConfig
	Stripe             StripeConfig
	Receipts           ReceiptConfig
	DynamoDB           DynamoDBConfig
}

type PaystackConfig struct {
	SecretKey string
	BaseURL   string
}

type FlutterwaveConfig struct {
	SecretKey   string
	BaseURL     string
	WebhookHash string
	LogoURL     string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type ReceiptConfig struct {
	Storage       string
	S3Bucket      string
	AWSRegion     string
	Dir           string
	PublicBaseURL string
	MaxBytes      int64
}

type DynamoDBConfig struct {
	IntentsTable     string
	MembershipsTable string
	Region           string
}

// Load reads defaults, then the optional config file at path, then the
// environment. Environment variables always win.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", path, err)
		}
	}

	cfg := Config{
		HTTPAddr:           trimmed(v, "http_addr"),
		StoreDriver:        strings.ToLower(trimmed(v, "store_driver")),
		DatabaseDSN:        normalizeConnectionString(trimmed(v, "database_dsn")),
		MigrationsDir:      trimmed(v, "migrations_dir"),
		ChannelID:          trimmed(v, "channel_id"),
		ChannelKey:         trimmed(v, "channel_key"),
		PricingCatalogPath: trimmed(v, "pricing_catalog_path"),
		DefaultProvider:    strings.ToLower(trimmed(v, "default_provider")),
		BaseURL:            strings.TrimRight(trimmed(v, "base_url"), "/"),
		ReferencePrefix:    trimmed(v, "reference_prefix"),
		GatewayTimeout:     v.GetDuration("gateway_timeout"),
		OutcomeCacheSize:   v.GetInt("outcome_cache_size"),
		Paystack: PaystackConfig{
			SecretKey: trimmed(v, "paystack_secret_key"),
			BaseURL:   strings.TrimRight(trimmed(v, "paystack_base_url"), "/"),
		},
		Flutterwave: FlutterwaveConfig{
			SecretKey:   trimmed(v, "flutterwave_secret_key"),
			BaseURL:     strings.TrimRight(trimmed(v, "flutterwave_base_url"), "/"),
			WebhookHash: trimmed(v, "flutterwave_webhook_hash"),
			LogoURL:     trimmed(v, "flutterwave_logo_url"),
		},
		Stripe: StripeConfig{
			SecretKey:     trimmed(v, "stripe_secret_key"),
			WebhookSecret: trimmed(v, "stripe_webhook_secret"),
		},
		Receipts: ReceiptConfig{
			Storage:       strings.ToLower(trimmed(v, "receipt_storage")),
			S3Bucket:      trimmed(v, "s3_receipt_bucket"),
			AWSRegion:     trimmed(v, "aws_region"),
			Dir:           trimmed(v, "receipt_dir"),
			PublicBaseURL: strings.TrimRight(trimmed(v, "receipt_public_base_url"), "/"),
			MaxBytes:      v.GetInt64("max_receipt_bytes"),
		},
		DynamoDB: DynamoDBConfig{
			IntentsTable:     trimmed(v, "dynamodb_intents_table"),
			MembershipsTable: trimmed(v, "dynamodb_memberships_table"),
			Region:           trimmed(v, "aws_region"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("store_driver", "postgres")
	v.SetDefault("database_dsn", defaultConnectionString)
	v.SetDefault("migrations_dir", filepath.Join("src", "migrations"))
	v.SetDefault("channel_id", defaultChannelID)
	v.SetDefault("channel_key", "")
	v.SetDefault("pricing_catalog_path", "")
	v.SetDefault("default_provider", "flutterwave")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("reference_prefix", defaultReferencePrefix)
	v.SetDefault("gateway_timeout", 15*time.Second)
	v.SetDefault("outcome_cache_size", 1024)
	v.SetDefault("paystack_secret_key", "")
	v.SetDefault("paystack_base_url", "https://api.paystack.co")
	v.SetDefault("flutterwave_secret_key", "")
	v.SetDefault("flutterwave_base_url", "https://api.flutterwave.com")
	v.SetDefault("flutterwave_webhook_hash", "")
	v.SetDefault("flutterwave_logo_url", "")
	v.SetDefault("stripe_secret_key", "")
	v.SetDefault("stripe_webhook_secret", "")
	v.SetDefault("receipt_storage", "filesystem")
	v.SetDefault("s3_receipt_bucket", "membership-receipts")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("receipt_dir", "receipts-data")
	v.SetDefault("receipt_public_base_url", "http://localhost:8080/files")
	v.SetDefault("max_receipt_bytes", int64(5<<20))
	v.SetDefault("dynamodb_intents_table", "payment_intents")
	v.SetDefault("dynamodb_memberships_table", "memberships")
}

func (c Config) validate() error {
	var errs []string

	switch c.StoreDriver {
	case "postgres", "dynamodb", "memory":
	default:
		errs = append(errs, "STORE_DRIVER must be postgres, dynamodb or memory")
	}
	switch c.Receipts.Storage {
	case "s3", "filesystem":
	default:
		errs = append(errs, "RECEIPT_STORAGE must be s3 or filesystem")
	}
	if c.GatewayTimeout <= 0 {
		errs = append(errs, "GATEWAY_TIMEOUT must be greater than zero")
	}
	if c.Receipts.MaxBytes <= 0 {
		errs = append(errs, "MAX_RECEIPT_BYTES must be greater than zero")
	}
	if c.ReferencePrefix == "" {
		errs = append(errs, "REFERENCE_PREFIX is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}

	return nil
}

func trimmed(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func normalizeConnectionString(raw string) string {
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		return raw
	}

	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	hasSSLMode := false

	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}

		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])

		switch key {
		case "host":
			out = append(out, "host="+val)
		case "port":
			out = append(out, "port="+val)
		case "database":
			out = append(out, "dbname="+val)
		case "username":
			out = append(out, "user="+val)
		case "password":
			out = append(out, "password="+val)
		case "timeout", "connect timeout":
			out = append(out, "connect_timeout="+val)
		case "commandtimeout", "command timeout":
			out = append(out, "statement_timeout="+val+"s")
		case "sslmode":
			hasSSLMode = true
			out = append(out, "sslmode="+val)
		default:
			out = append(out, key+"="+val)
		}
	}

	if len(out) == 0 {
		return raw
	}

	if !hasSSLMode {
		out = append(out, "sslmode=disable")
	}

	return strings.Join(out, " ")
}
