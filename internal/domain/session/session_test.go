package session_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/smartbiz/internal/domain/forecast"
	"github.com/okian/smartbiz/internal/domain/registry"
	"github.com/okian/smartbiz/internal/domain/session"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCredentials(t *testing.T) {
	Convey("Given login credentials", t, func() {
		Convey("Then a filled pair is valid", func() {
			So(session.Credentials{Username: "ana", Password: "x"}.Validate(), ShouldBeNil)
		})

		Convey("Then blank fields are rejected", func() {
			for _, c := range []session.Credentials{
				{},
				{Username: "ana"},
				{Password: "x"},
				{Username: "   ", Password: "x"},
				{Username: "ana", Password: "\t"},
			} {
				So(errors.Is(c.Validate(), session.ErrInvalidCredentials), ShouldBeTrue)
			}
		})
	})
}

func TestSession(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	Convey("Given a new session", t, func() {
		s := session.New(" ana ", now)

		Convey("Then it has a uuid and a trimmed username", func() {
			_, err := uuid.Parse(s.ID)
			So(err, ShouldBeNil)
			So(s.Username, ShouldEqual, "ana")
			So(s.CreatedAt, ShouldEqual, now)
			So(s.LastSeen(), ShouldEqual, now)
			So(s.RunCount(), ShouldEqual, 0)
		})

		Convey("Then two sessions get different ids", func() {
			So(session.New("ana", now).ID, ShouldNotEqual, s.ID)
		})

		Convey("When it is touched", func() {
			s.Touch(now.Add(time.Minute))
			s.Touch(now)

			Convey("Then last seen only moves forward", func() {
				So(s.LastSeen(), ShouldEqual, now.Add(time.Minute))
				So(s.IdleSince(now.Add(10*time.Minute), 10*time.Minute), ShouldBeFalse)
				So(s.IdleSince(now.Add(11*time.Minute), 10*time.Minute), ShouldBeTrue)
			})
		})

		Convey("When runs are recorded", func() {
			pts := []forecast.Point{{Period: "2022", Value: 1, Kind: forecast.Forecast}}
			s.RecordRun("prophet", pts, registry.Metrics{MAE: 1})
			s.RecordRun("arima", pts, registry.Metrics{MAE: 2})

			Convey("Then they are listed and compared", func() {
				So(s.RunCount(), ShouldEqual, 2)
				So(len(s.Runs()), ShouldEqual, 2)
				run, ok := s.Run("arima")
				So(ok, ShouldBeTrue)
				So(run.Metrics.MAE, ShouldEqual, 2)
				So(s.Comparison().Models, ShouldResemble, []string{"prophet", "arima"})
			})

			Convey("And the session is cleared", func() {
				s.Clear()

				Convey("Then no runs remain", func() {
					So(s.RunCount(), ShouldEqual, 0)
				})
			})
		})

		Convey("When runs are recorded concurrently", func() {
			var wg sync.WaitGroup
			models := []string{"prophet", "arima", "lstm", "gru"}
			for i := 0; i < 40; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					s.RecordRun(models[i%len(models)], nil, registry.Metrics{})
					_ = s.Comparison()
				}(i)
			}
			wg.Wait()

			Convey("Then each model is stored once", func() {
				So(s.RunCount(), ShouldEqual, len(models))
			})
		})
	})
}
