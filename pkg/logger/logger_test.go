package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	convey.Convey("Given the global logger", t, func() {
		convey.Convey("When initialized with defaults", func() {
			convey.So(Init(), convey.ShouldBeNil)

			convey.Convey("Then Get returns a usable logger", func() {
				l := Get()
				convey.So(l, convey.ShouldNotBeNil)
				convey.So(func() { l.Info(context.Background(), "test message", String("k", "v")) }, convey.ShouldNotPanic)
				convey.So(Sync(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When initialized with an unknown format", func() {
			err := InitWith(&bytes.Buffer{}, Format("xml"))

			convey.Convey("Then it fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	convey.Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		convey.So(InitWith(&buf, FormatJSON), convey.ShouldBeNil)

		convey.Convey("When logging with fields and an error", func() {
			Named("registry").Warn(context.Background(), "scan failed",
				String("uid", "a1b2"),
				Int("attempt", 2),
				Error(errors.New("boom")),
			)

			convey.Convey("Then the line is valid JSON carrying the fields", func() {
				var line map[string]any
				convey.So(json.Unmarshal(buf.Bytes(), &line), convey.ShouldBeNil)
				convey.So(line["msg"], convey.ShouldEqual, "scan failed")
				group, ok := line["registry"].(map[string]any)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(group["uid"], convey.ShouldEqual, "a1b2")
				convey.So(group["error"], convey.ShouldEqual, "boom")
				convey.So(group["source"], convey.ShouldContainSubstring, "logger_test.go")
			})
		})
	})
}

func TestLoggerLevels(t *testing.T) {
	convey.Convey("Given a text logger", t, func() {
		var buf bytes.Buffer
		convey.So(InitWith(&buf, FormatText), convey.ShouldBeNil)

		convey.Convey("When the level is raised to error", func() {
			convey.So(SetLevelString("ERROR"), convey.ShouldBeNil)
			Get().Info(context.Background(), "hidden")
			Get().Error(context.Background(), "shown")

			convey.Convey("Then only error lines are written", func() {
				out := buf.String()
				convey.So(strings.Contains(out, "hidden"), convey.ShouldBeFalse)
				convey.So(out, convey.ShouldContainSubstring, "shown")
			})
		})

		convey.Convey("When an unknown level is set", func() {
			convey.So(SetLevelString("loud"), convey.ShouldNotBeNil)
		})

		convey.Convey("When a child logger carries fields", func() {
			Get().With(String("component", "cache")).Info(context.Background(), "hit")

			convey.Convey("Then every line includes them", func() {
				convey.So(buf.String(), convey.ShouldContainSubstring, "component=cache")
			})
		})
	})
}

func TestNop(t *testing.T) {
	convey.Convey("Given the nop logger", t, func() {
		l := Nop()

		convey.Convey("Then logging never panics", func() {
			convey.So(func() {
				l.Error(context.Background(), "ignored", Error(errors.New("x")))
				l.Named("n").With(Bool("b", true)).Debug(context.Background(), "ignored")
			}, convey.ShouldNotPanic)
		})
	})
}
