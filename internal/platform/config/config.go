package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	LogLevel    string
	ServiceName string

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Auth        AuthConfig
	Wallet      WalletConfig
	Stock       StockConfig
	Workflow    WorkflowConfig
}

// RedisConfig configures the optional Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the workflow outbox relay. No brokers disables it.
type KafkaConfig struct {
	Brokers       []string
	WorkflowTopic string
	RelayInterval time.Duration
	RelayBatch    int
}

// AuthConfig configures operator tokens and webhook keys.
type AuthConfig struct {
	JWTSigningKey       string
	JWTIssuer           string
	JWTAudience         string
	// WebhookAPIKeyHashes holds bcrypt hashes; more than one allows key rotation.
	WebhookAPIKeyHashes []string
}

// WalletConfig configures the eWallet program used for gift top-ups.
type WalletConfig struct {
	ProgramProductID string
	ProgramName      string
	NetPolicy        string
	LockTTL          time.Duration
}

// StockConfig names the stock locations the fulfillment flow moves goods between.
type StockConfig struct {
	StockLocation    string
	PendingLocation  string
	CustomerLocation string
	SupplierLocation string
}

// WorkflowConfig selects which document types get workflow actions logged.
type WorkflowConfig struct {
	EnabledDocuments []string
	WebhookLimit     int
	WebhookWindow    time.Duration
}

// FromEnv builds the configuration from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        envOr("GIFTLIST_ADDR", ":8080"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		ServiceName: envOr("OTEL_SERVICE_NAME", "giftlist"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       envList("KAFKA_BROKERS"),
			WorkflowTopic: envOr("KAFKA_WORKFLOW_TOPIC", "giftlist.workflow.actions"),
			RelayInterval: envDuration("KAFKA_RELAY_INTERVAL", 2*time.Second),
			RelayBatch:    envInt("KAFKA_RELAY_BATCH", 100),
		},
		Auth: AuthConfig{
			// Use a default for development - override in production
			JWTSigningKey:       envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:           envOr("JWT_ISSUER", "giftlist"),
			JWTAudience:         envOr("JWT_AUDIENCE", "giftlist-backoffice"),
			WebhookAPIKeyHashes: envList("WEBHOOK_API_KEY_HASHES"),
		},
		Wallet: WalletConfig{
			ProgramProductID: os.Getenv("EWALLET_PRODUCT_ID"),
			ProgramName:      envOr("EWALLET_PROGRAM_NAME", "eWallet"),
			NetPolicy:        envOr("WALLET_NET_POLICY", "deduct_adjustments"),
			LockTTL:          envDuration("WALLET_LOCK_TTL", 10*time.Second),
		},
		Stock: StockConfig{
			StockLocation:    envOr("STOCK_LOCATION", "WH/Stock"),
			PendingLocation:  envOr("PENDING_LOCATION", "WH/Pending Delivery"),
			CustomerLocation: envOr("CUSTOMER_LOCATION", "Partners/Customers"),
			SupplierLocation: envOr("SUPPLIER_LOCATION", "Partners/Vendors"),
		},
		Workflow: WorkflowConfig{
			EnabledDocuments: envList("WORKFLOW_DOCUMENTS"),
			WebhookLimit:     envInt("WEBHOOK_RATE_LIMIT", 100),
			WebhookWindow:    envDuration("WEBHOOK_RATE_WINDOW", 60*time.Second),
		},
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// envList splits a comma separated variable, dropping blanks.
func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
