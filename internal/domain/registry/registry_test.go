package registry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/tagtrail/internal/adapters/docstore"
	"github.com/okian/tagtrail/internal/domain/apperr"
	"github.com/okian/tagtrail/internal/domain/model"
	"github.com/okian/tagtrail/internal/domain/registry"
	. "github.com/smartystreets/goconvey/convey"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func loadTag(ctx context.Context, store docstore.Store, uid string) (model.TagRecord, bool) {
	snap, err := store.Get(ctx, model.CollectionTags, uid)
	So(err, ShouldBeNil)
	var rec model.TagRecord
	if snap.Exists {
		So(snap.DataTo(&rec), ShouldBeNil)
	}
	return rec, snap.Exists
}

func TestRegistrySave(t *testing.T) {
	Convey("Given a registry over an empty store", t, func() {
		ctx := context.Background()
		store := docstore.NewMemoryStore()
		clock := &stepClock{now: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)}
		reg := registry.New(store, registry.WithClock(clock.Now))

		Convey("When a tag is scanned for the first time", func() {
			res, err := reg.Save(ctx, model.Scan{UID: "a1b2", URL: "https://x.test", DeviceID: "d1", ScanType: "nfc"})

			Convey("Then the tag is created with one history entry", func() {
				So(err, ShouldBeNil)
				So(res, ShouldResemble, model.SaveResult{UID: "a1b2", Created: true, ScanCount: 1})

				rec, ok := loadTag(ctx, store, "a1b2")
				So(ok, ShouldBeTrue)
				So(rec.ScanCount, ShouldEqual, 1)
				So(rec.History, ShouldHaveLength, 1)
				So(rec.FirstSeen, ShouldEqual, rec.LastSeen)
				So(rec.History[0].DeviceID, ShouldEqual, "d1")
				So(rec.History[0].Location, ShouldBeNil)
				So(rec.AccessedURL, ShouldEqual, "https://x.test")
			})

			Convey("And it is scanned again from another device", func() {
				loc := "warehouse-3"
				res, err := reg.Save(ctx, model.Scan{UID: "a1b2", URL: "https://y.test", DeviceID: "d2", ScanType: "nfc", Location: &loc})

				Convey("Then the counter grows and the last fields move", func() {
					So(err, ShouldBeNil)
					So(res.Created, ShouldBeFalse)
					So(res.ScanCount, ShouldEqual, 2)

					rec, _ := loadTag(ctx, store, "a1b2")
					So(rec.ScanCount, ShouldEqual, 2)
					So(rec.History, ShouldHaveLength, 2)
					So(rec.History[0].DeviceID, ShouldEqual, "d1")
					So(rec.History[1].DeviceID, ShouldEqual, "d2")
					So(rec.LastSeen, ShouldEqual, rec.History[1].Timestamp)
					So(rec.FirstSeen.Before(rec.LastSeen), ShouldBeTrue)
					So(rec.LastDevice, ShouldEqual, "d2")
					So(*rec.LastLocation, ShouldEqual, "warehouse-3")
					So(rec.AccessedURL, ShouldEqual, "https://y.test")
				})
			})
		})

		Convey("When required fields are missing", func() {
			_, err := reg.Save(ctx, model.Scan{UID: "a1b2", URL: " ", ScanType: "nfc"})

			Convey("Then a validation error names them and nothing is written", func() {
				So(apperr.IsValidation(err), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "url, deviceId")
				_, ok := loadTag(ctx, store, "a1b2")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the store keeps conflicting", func() {
			reg := registry.New(conflictStore{store})
			_, err := reg.Save(ctx, model.Scan{UID: "a1b2", URL: "u", DeviceID: "d", ScanType: "nfc"})

			Convey("Then the transient kind reaches the caller", func() {
				So(apperr.IsTransient(err), ShouldBeTrue)
			})
		})
	})
}

// conflictStore fails every transaction as if retries ran out.
type conflictStore struct{ docstore.Store }

func (conflictStore) RunTransaction(context.Context, docstore.TxFunc) error {
	return apperr.WrapKind("docstore.memory.tx", apperr.ErrTransient, docstore.ErrConflict)
}

func TestRegistryConcurrentScans(t *testing.T) {
	Convey("Given many devices scanning the same tag at once", t, func() {
		ctx := context.Background()
		store := docstore.NewMemoryStore(docstore.WithMaxAttempts(10_000), docstore.WithBaseBackoff(0))
		reg := registry.New(store)

		const n = 100
		var wg sync.WaitGroup
		var failed sync.Map
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := reg.Save(ctx, model.Scan{UID: "c0ffee", URL: "https://x.test", DeviceID: "d", ScanType: "nfc"}); err != nil {
					failed.Store(err.Error(), err)
				}
			}()
		}
		wg.Wait()

		Convey("Then no increment or history entry is lost", func() {
			var errs []error
			failed.Range(func(_, v any) bool { errs = append(errs, v.(error)); return true })
			So(errors.Join(errs...), ShouldBeNil)

			rec, _ := loadTag(ctx, store, "c0ffee")
			So(rec.ScanCount, ShouldEqual, n)
			So(rec.History, ShouldHaveLength, n)
			So(rec.LastSeen, ShouldEqual, rec.History[n-1].Timestamp)
		})
	})
}
