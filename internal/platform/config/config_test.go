package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_FIRESTORE_PROJECT_ID": "detalia-test",
		}),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Store.Currency != "PEN" {
		t.Fatalf("expected currency PEN, got %s", cfg.Store.Currency)
	}
	if cfg.Store.Timezone != "America/Lima" {
		t.Fatalf("expected timezone America/Lima, got %s", cfg.Store.Timezone)
	}
	if cfg.Store.OrderEditWindow != 30*24*time.Hour {
		t.Fatalf("expected 30 day edit window, got %s", cfg.Store.OrderEditWindow)
	}
	if cfg.Store.OrderDelayedAfter != 24*time.Hour {
		t.Fatalf("expected 24h delay threshold, got %s", cfg.Store.OrderDelayedAfter)
	}
	if cfg.Store.MaxDiscountPercent != 80 {
		t.Fatalf("expected 80%% discount cap, got %d", cfg.Store.MaxDiscountPercent)
	}
	if cfg.PubSub.ProjectID != "detalia-test" {
		t.Fatalf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.OrdersTopic != "order-events" {
		t.Fatalf("expected default orders topic, got %s", cfg.PubSub.OrdersTopic)
	}
	if cfg.Idempotency.Header != "Idempotency-Key" {
		t.Fatalf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if _, err := cfg.Store.Location(); err != nil {
		t.Fatalf("store timezone should resolve: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_FIRESTORE_PROJECT_ID":       "detalia-prod",
			"API_SERVER_PORT":                "9090",
			"API_STORE_TIMEZONE":             "America/Bogota",
			"API_STORE_ORDER_EDIT_WINDOW":    "168h",
			"API_STORE_MAX_DISCOUNT_PERCENT": "60",
			"API_PUBSUB_PROJECT_ID":          "detalia-events",
			"API_IDEMPOTENCY_TTL":            "2h",
		}),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Store.Timezone != "America/Bogota" {
		t.Fatalf("expected overridden timezone, got %s", cfg.Store.Timezone)
	}
	if cfg.Store.OrderEditWindow != 168*time.Hour {
		t.Fatalf("expected 168h edit window, got %s", cfg.Store.OrderEditWindow)
	}
	if cfg.Store.MaxDiscountPercent != 60 {
		t.Fatalf("expected 60%% cap, got %d", cfg.Store.MaxDiscountPercent)
	}
	if cfg.PubSub.ProjectID != "detalia-events" {
		t.Fatalf("expected explicit pubsub project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Idempotency.TTL != 2*time.Hour {
		t.Fatalf("expected 2h idempotency TTL, got %s", cfg.Idempotency.TTL)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_STORE_TIMEZONE":             "Mars/Olympus",
			"API_STORE_MAX_DISCOUNT_PERCENT": "150",
		}),
	)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T %v", err, err)
	}
	fields := strings.Join(validationErr.Fields(), ",")
	for _, want := range []string{"Firestore.ProjectID", "Store.Timezone", "Store.MaxDiscountPercent"} {
		if !strings.Contains(fields, want) {
			t.Fatalf("expected %s in validation fields, got %s", want, fields)
		}
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := strings.Join([]string{
		"# local overrides",
		"API_FIRESTORE_PROJECT_ID=detalia-local",
		"export API_SERVER_PORT=7070",
		"API_STORE_CURRENCY=\"PEN\"",
	}, "\n")
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(WithoutSystemEnv(), WithEnvFile(envFile))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Firestore.ProjectID != "detalia-local" {
		t.Fatalf("expected project from dotenv, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Server.Port != "7070" {
		t.Fatalf("expected exported port from dotenv, got %s", cfg.Server.Port)
	}
	if cfg.Store.Currency != "PEN" {
		t.Fatalf("expected unquoted currency, got %s", cfg.Store.Currency)
	}
}

func TestLoadEnvMapPrecedesDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("API_FIRESTORE_PROJECT_ID=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(envFile),
		WithEnvMap(map[string]string{"API_FIRESTORE_PROJECT_ID": "from-map"}),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Firestore.ProjectID != "from-map" {
		t.Fatalf("expected env map to win, got %s", cfg.Firestore.ProjectID)
	}
}
