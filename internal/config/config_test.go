package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/tagtrail/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreBackend, convey.ShouldEqual, config.BackendMemory)
			convey.So(cfg.CacheBackend, convey.ShouldEqual, config.BackendMemory)
			convey.So(cfg.BatchLimit, convey.ShouldEqual, 500)
			convey.So(cfg.DefaultPageLimit, convey.ShouldEqual, 100)
			convey.So(cfg.MaxPageLimit, convey.ShouldEqual, 500)
			convey.So(cfg.TagCacheTTL().Seconds(), convey.ShouldEqual, 120)
			convey.So(cfg.StatsCacheTTL().Seconds(), convey.ShouldEqual, 60)
			convey.So(cfg.ScanDedupeWindow(), convey.ShouldEqual, 0)
			convey.So(cfg.AllowedScanTypes, convey.ShouldResemble, []string{"nfc"})
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When the postgres backend has no DSN", func() {
			cfg.StoreBackend = config.BackendPostgres

			convey.Convey("Then validation fails", func() {
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "postgres_dsn")
			})
		})

		convey.Convey("When the store backend is unknown", func() {
			cfg.StoreBackend = "firestore"
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When the default page limit exceeds the max", func() {
			cfg.DefaultPageLimit = 600
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When the scan type allow-list is empty", func() {
			cfg.AllowedScanTypes = nil
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When transaction attempts are zero", func() {
			cfg.TxMaxAttempts = 0
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})
	})
}
