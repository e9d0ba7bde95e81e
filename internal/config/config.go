/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"savium-invest-go/internal/models"
)

// Load reads the configuration from the environment. Values from a .env file
// are already present when the common package has been initialised.
func Load() (*models.Config, error) {
	var (
		connMaxLifetime, connMaxIdleTime, pingTimeout, busyTimeout time.Duration
		readTimeout, writeTimeout, requestTimeout, shutdownTimeout time.Duration
		signatureTolerance, drainTimeout                           time.Duration
	)
	defaults := []struct {
		key   string
		dst   *time.Duration
		value time.Duration
	}{
		{"DB_CONN_MAX_LIFETIME", &connMaxLifetime, 5 * time.Minute},
		{"DB_CONN_MAX_IDLE_TIME", &connMaxIdleTime, 30 * time.Second},
		{"DB_PING_TIMEOUT", &pingTimeout, 5 * time.Second},
		{"DB_BUSY_TIMEOUT", &busyTimeout, 5 * time.Second},
		{"SERVER_READ_TIMEOUT", &readTimeout, 15 * time.Second},
		{"SERVER_WRITE_TIMEOUT", &writeTimeout, 60 * time.Second},
		{"SERVER_REQUEST_TIMEOUT", &requestTimeout, 60 * time.Second},
		{"SERVER_SHUTDOWN_TIMEOUT", &shutdownTimeout, 15 * time.Second},
		{"STRIPE_SIGNATURE_TOLERANCE", &signatureTolerance, 5 * time.Minute},
		{"AUDIT_DRAIN_TIMEOUT", &drainTimeout, 5 * time.Second},
	}
	for _, d := range defaults {
		v, err := getEnvDuration(d.key, d.value)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:             getEnvString("DATABASE_PATH", "savium.db"),
			MaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  connMaxLifetime,
			ConnMaxIdleTime:  connMaxIdleTime,
			PingTimeout:      pingTimeout,
			BusyTimeout:      busyTimeout,
			CreateDummyUsers: getEnvBool("CREATE_DUMMY_USERS", false),
			SeedUsersFile:    getEnvString("SEED_USERS_FILE", "users.yaml"),
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("SERVER_ADDR", ":8000"),
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			RequestTimeout:  requestTimeout,
			ShutdownTimeout: shutdownTimeout,
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Payments: models.PaymentsConfig{
			SecretKey:          os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:      os.Getenv("STRIPE_WEBHOOK_SECRET"),
			SignatureTolerance: signatureTolerance,
			DefaultCurrency:    strings.ToLower(getEnvString("DEFAULT_CURRENCY", "inr")),
		},
		Auth: models.AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			Issuer:    os.Getenv("JWT_ISSUER"),
			Audience:  os.Getenv("JWT_AUDIENCE"),
		},
		Audit: models.AuditConfig{
			Workers:      getEnvInt("AUDIT_WORKERS", 2),
			QueueSize:    getEnvInt("AUDIT_QUEUE_SIZE", 256),
			DrainTimeout: drainTimeout,
		},
		Formance: models.FormanceConfig{
			StackURL:     os.Getenv("FORMANCE_STACK_URL"),
			ClientID:     os.Getenv("FORMANCE_CLIENT_ID"),
			ClientSecret: os.Getenv("FORMANCE_CLIENT_SECRET"),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "savium-invest"),
		},
		Notify: models.NotifyConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Exchange: getEnvString("RABBITMQ_EXCHANGE", "savium_events"),
		},
	}
	return cfg, nil
}

// Validate checks the settings the HTTP server cannot run without.
func Validate(cfg *models.Config) error {
	if cfg.Payments.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Audit.Workers < 1 {
		return fmt.Errorf("AUDIT_WORKERS must be at least 1, got %d", cfg.Audit.Workers)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
