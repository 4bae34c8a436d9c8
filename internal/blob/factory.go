package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"liderforte/internal/blob/core"
	"liderforte/internal/infra/blob/fs"
	"liderforte/internal/infra/blob/memory"
	"liderforte/internal/infra/blob/s3"
)

// S3Config configures the s3 driver.
type S3Config = s3.Config

// Config selects and configures a driver.
type Config struct {
	Driver string   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// Environment variables read by ConfigFromEnv.
const (
	EnvDriver      = "LIDERFORTE_BLOB_DRIVER"
	EnvFSRoot      = "LIDERFORTE_BLOB_FS_ROOT"
	EnvS3Bucket    = "LIDERFORTE_BLOB_S3_BUCKET"
	EnvS3Region    = "LIDERFORTE_BLOB_S3_REGION"
	EnvS3Endpoint  = "LIDERFORTE_BLOB_S3_ENDPOINT"
	EnvS3Prefix    = "LIDERFORTE_BLOB_S3_PREFIX"
	EnvS3PathStyle = "LIDERFORTE_BLOB_S3_PATH_STYLE"
)

// ConfigFromEnv overlays environment variables on base. Unset variables keep
// the base value.
func ConfigFromEnv(base Config) Config {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	set(&base.Driver, EnvDriver)
	set(&base.FSRoot, EnvFSRoot)
	set(&base.S3.Bucket, EnvS3Bucket)
	set(&base.S3.Region, EnvS3Region)
	set(&base.S3.Endpoint, EnvS3Endpoint)
	set(&base.S3.Prefix, EnvS3Prefix)
	if v, ok := os.LookupEnv(EnvS3PathStyle); ok {
		base.S3.PathStyle = strings.EqualFold(v, "true") || v == "1"
	}
	return base
}

// Open constructs the configured store. The filesystem driver is the default.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver, err := core.ParseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	switch driver {
	case core.DriverMemory:
		return memory.New(), nil
	case core.DriverS3:
		store, err := s3.New(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("open s3 blob store: %w", err)
		}
		return store, nil
	default:
		return fs.New(cfg.FSRoot)
	}
}
