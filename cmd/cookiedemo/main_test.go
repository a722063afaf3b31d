package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/Morditux/cookiesession/internal/config"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.RevocationConfig
		wantNil bool
	}{
		{"none", config.RevocationConfig{Backend: config.BackendNone}, true},
		{"empty", config.RevocationConfig{}, true},
		{"memory", config.RevocationConfig{Backend: config.BackendMemory}, false},
		{"sqlite", config.RevocationConfig{Backend: config.BackendSQLite, DSN: filepath.Join(t.TempDir(), "revoked.db")}, false},
		{"redis", config.RevocationConfig{Backend: config.BackendRedis, Addrs: []string{mr.Addr()}}, false},
		{"memcached", config.RevocationConfig{Backend: config.BackendMemcached, Addrs: []string{"127.0.0.1:11211"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStore(ctx, tt.cfg)
			if err != nil {
				t.Fatalf("openStore() error = %v", err)
			}
			if (store == nil) != tt.wantNil {
				t.Fatalf("openStore() = %v, wantNil %v", store, tt.wantNil)
			}
			if store == nil {
				return
			}
			defer store.Close()

			if tt.cfg.Backend == config.BackendMemcached {
				return // constructing the client does not need a server
			}
			if err := store.Revoke(ctx, "0123456789abcdef0123456789abcdef", time.Now().Add(time.Hour)); err != nil {
				t.Fatalf("Revoke() error = %v", err)
			}
			revoked, err := store.IsRevoked(ctx, "0123456789abcdef0123456789abcdef")
			if err != nil || !revoked {
				t.Errorf("IsRevoked() = %v, %v", revoked, err)
			}
		})
	}

	if _, err := openStore(ctx, config.RevocationConfig{Backend: "etcd"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestRun_InvalidInput(t *testing.T) {
	var out bytes.Buffer
	noEnv := func(string) string { return "" }

	if err := run(context.Background(), []string{"-nope"}, noEnv, &out); err == nil {
		t.Error("expected error for unknown flag")
	}

	badEnv := func(k string) string {
		if k == config.EnvPrefix+"SESSION_SECRETS" {
			return "short"
		}
		return ""
	}
	if err := run(context.Background(), nil, badEnv, &out); err == nil {
		t.Error("expected error for a weak secret")
	}
}
