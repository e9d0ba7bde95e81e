package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Payments PaymentsConfig
	Auth     AuthConfig
	Audit    AuditConfig
	Formance FormanceConfig
	Notify   NotifyConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path             string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	PingTimeout      time.Duration
	BusyTimeout      time.Duration
	CreateDummyUsers bool
	SeedUsersFile    string
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// PaymentsConfig holds payment provider credentials
type PaymentsConfig struct {
	SecretKey          string
	WebhookSecret      string
	SignatureTolerance time.Duration
	DefaultCurrency    string
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
}

// AuditConfig controls the background transaction log writer
type AuditConfig struct {
	Workers      int
	QueueSize    int
	DrainTimeout time.Duration
}

// FormanceConfig holds the optional settlement mirror settings.
// The mirror is disabled when StackURL is empty.
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// NotifyConfig holds the optional RabbitMQ publisher settings.
// Publishing is disabled when URL is empty.
type NotifyConfig struct {
	URL      string
	Exchange string
}
