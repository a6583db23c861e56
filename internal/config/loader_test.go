package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/tagtrail/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.BatchLimit, convey.ShouldEqual, 500)
				convey.So(cfg.TxMaxAttempts, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("TAGTRAIL_ADDR", ":8080")
			_ = os.Setenv("TAGTRAIL_BATCH_LIMIT", "50")
			_ = os.Setenv("TAGTRAIL_TX_MAX_ATTEMPTS", "3")
			_ = os.Setenv("TAGTRAIL_ALLOWED_SCAN_TYPES", "nfc, qr")
			_ = os.Setenv("TAGTRAIL_CACHE_BACKEND", "REDIS")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.BatchLimit, convey.ShouldEqual, 50)
				convey.So(cfg.TxMaxAttempts, convey.ShouldEqual, 3)
				convey.So(cfg.AllowedScanTypes, convey.ShouldResemble, []string{"nfc", "qr"})
				convey.So(cfg.CacheBackend, convey.ShouldEqual, config.BackendRedis)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
# file layer
addr: ":9090"
store_backend: postgres
postgres_dsn: "postgres://tagtrail@localhost/tagtrail"
tag_cache_ttl_seconds: 30
cors_allowed_origins:
  - https://example.com
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("TAGTRAIL_CONFIG", tmpFile)
			_ = os.Setenv("TAGTRAIL_ADDR", ":8081")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8081")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, config.BackendPostgres)
				convey.So(cfg.TagCacheTTLSeconds, convey.ShouldEqual, 30)
				convey.So(cfg.CORSAllowedOrigins, convey.ShouldResemble, []string{"https://example.com"})
				convey.So(cfg.MaxPageLimit, convey.ShouldEqual, 500)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("TAGTRAIL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a missing file", func() {
			_ = os.Setenv("TAGTRAIL_CONFIG", "/nonexistent/tagtrail.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("TAGTRAIL_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("TAGTRAIL_BATCH_LIMIT", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	envVars := []string{
		"TAGTRAIL_CONFIG",
		"TAGTRAIL_ADDR",
		"TAGTRAIL_BATCH_LIMIT",
		"TAGTRAIL_TX_MAX_ATTEMPTS",
		"TAGTRAIL_ALLOWED_SCAN_TYPES",
		"TAGTRAIL_CACHE_BACKEND",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "tagtrail-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
