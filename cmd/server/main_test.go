package main

import (
	"context"
	"testing"

	"bahikhata/backend/internal/config"
	"bahikhata/backend/internal/logging"
	"bahikhata/backend/internal/store/memory"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", Storage: config.StorageMemory})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: strongSecret, Storage: config.StorageMemory})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidateSecurityConfigRequiresDatabaseLocation(t *testing.T) {
	if err := validateSecurityConfig(config.Config{AuthSecret: strongSecret, Storage: config.StoragePostgres}); err == nil {
		t.Fatalf("expected postgres without DATABASE_URL to be rejected")
	}
	if err := validateSecurityConfig(config.Config{AuthSecret: strongSecret, Storage: config.StorageMongo}); err == nil {
		t.Fatalf("expected mongo without MONGO_URI to be rejected")
	}
}

func TestOpenRepositoryDefaultsToSeededMemory(t *testing.T) {
	repo, closeFn, err := openRepository(context.Background(), config.Config{Storage: config.StorageMemory}, logging.Discard())
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	if closeFn != nil {
		t.Fatalf("expected no close func for memory store")
	}
	if _, err := repo.GetProduct(context.Background(), memory.SeedBusinessID, memory.SeedProductPenID); err != nil {
		t.Fatalf("expected seeded product, got %v", err)
	}
}
