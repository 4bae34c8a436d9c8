package blob

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	mem, err := Open(ctx, Config{Driver: "memory"})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("memory driver: %v %v", mem, err)
	}
	fsStore, err := Open(ctx, Config{FSRoot: t.TempDir()})
	if err != nil || fsStore.Driver() != DriverFilesystem {
		t.Fatalf("default driver: %v %v", fsStore, err)
	}
	if _, err := fsStore.Put(ctx, "a.json", bytes.NewReader([]byte("{}")), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := fsStore.Put(ctx, "a.json", bytes.NewReader([]byte("{}")), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := Open(ctx, Config{Driver: "s3"}); err == nil {
		t.Fatal("expected missing bucket error")
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatal("expected unknown driver error")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvDriver, "s3")
	t.Setenv(EnvS3Bucket, "archive")
	t.Setenv(EnvS3PathStyle, "true")
	cfg := ConfigFromEnv(Config{FSRoot: "/srv/archive", S3: S3Config{Region: "sa-east-1"}})
	if cfg.Driver != "s3" || cfg.S3.Bucket != "archive" || !cfg.S3.PathStyle {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.FSRoot != "/srv/archive" || cfg.S3.Region != "sa-east-1" {
		t.Fatalf("base values lost: %+v", cfg)
	}
}
