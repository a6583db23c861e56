package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/okian/tagtrail/internal/domain/apperr"
	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorKinds(t *testing.T) {
	Convey("Given errors built with the package helpers", t, func() {
		Convey("When a validation error is created", func() {
			err := apperr.New("registry.save", apperr.ErrValidation, "missing %s", "uid")

			Convey("Then it matches the validation kind only", func() {
				So(apperr.IsValidation(err), ShouldBeTrue)
				So(apperr.IsNotFound(err), ShouldBeFalse)
				So(err.Error(), ShouldEqual, "registry.save: validation failed: missing uid")
				So(apperr.Message(err), ShouldEqual, "missing uid")
			})
		})

		Convey("When a cause is wrapped with a kind", func() {
			cause := errors.New("conflict")
			err := apperr.WrapKind("docstore.tx", apperr.ErrTransient, cause)

			Convey("Then both the kind and the cause are reachable", func() {
				So(apperr.IsTransient(err), ShouldBeTrue)
				So(errors.Is(err, cause), ShouldBeTrue)
			})
		})

		Convey("When an error is wrapped twice", func() {
			inner := apperr.NewKind("reader.get", apperr.ErrNotFound)
			outer := apperr.Wrap("api.get_tag", fmt.Errorf("lookup: %w", inner))

			Convey("Then the kind survives", func() {
				So(apperr.IsNotFound(outer), ShouldBeTrue)
			})
		})

		Convey("When nil is wrapped", func() {
			So(apperr.Wrap("op", nil), ShouldBeNil)
			So(apperr.WrapKind("op", apperr.ErrValidation, nil), ShouldBeNil)
			So(apperr.Message(nil), ShouldEqual, "")
		})
	})
}
