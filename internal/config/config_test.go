package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadStorageSelection(t *testing.T) {
	cases := []struct {
		name     string
		storage  string
		database string
		mongo    string
		want     string
	}{
		{name: "default memory", want: StorageMemory},
		{name: "postgres from url", database: "postgres://localhost/db", want: StoragePostgres},
		{name: "mongo from uri", mongo: "mongodb://localhost", want: StorageMongo},
		{name: "postgres before mongo", database: "postgres://localhost/db", mongo: "mongodb://localhost", want: StoragePostgres},
		{name: "explicit wins", storage: "MONGO", database: "postgres://localhost/db", want: StorageMongo},
		{name: "explicit memory", storage: "memory", database: "postgres://localhost/db", want: StorageMemory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("STORAGE", tc.storage)
			t.Setenv("DATABASE_URL", tc.database)
			t.Setenv("MONGO_URI", tc.mongo)

			if got := Load().Storage; got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestLoadFallsBackOnBadDurations(t *testing.T) {
	t.Setenv("PARTY_CACHE_TTL_SECONDS", "abc")
	t.Setenv("LOCK_TTL_SECONDS", "-4")

	cfg := Load()
	if cfg.PartyCacheTTLSeconds != 300 {
		t.Fatalf("expected default cache ttl, got %d", cfg.PartyCacheTTLSeconds)
	}
	if cfg.LockTTLSeconds != 10 {
		t.Fatalf("expected default lock ttl, got %d", cfg.LockTTLSeconds)
	}
}
