package forecast_test

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/okian/smartbiz/internal/domain/forecast"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseHistorical(t *testing.T) {
	Convey("Given historical CSV text", t, func() {
		Convey("When the CSV uses Year,Value", func() {
			recs, err := forecast.ParseHistorical("Year,Value\n2020,100\n2021,120")

			Convey("Then every data line becomes a record", func() {
				So(err, ShouldBeNil)
				So(recs, ShouldResemble, []forecast.HistoricalRecord{
					{Period: "2020", Value: 100},
					{Period: "2021", Value: 120},
				})
			})
		})

		Convey("When the CSV has CRLF endings, blank lines and padded fields", func() {
			recs, err := forecast.ParseHistorical("ds,y\r\n 2019 , 1.5\r\n\r\n2020,2.5\r\n")

			Convey("Then blank lines are skipped and fields trimmed", func() {
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 2)
				So(recs[0], ShouldResemble, forecast.HistoricalRecord{Period: "2019", Value: 1.5})
			})
		})

		Convey("When a value is not numeric or the row is short", func() {
			recs, err := forecast.ParseHistorical("year,value\n2020,n/a\n2021")

			Convey("Then the rows are kept with NaN values", func() {
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 2)
				So(math.IsNaN(recs[0].Value), ShouldBeTrue)
				So(math.IsNaN(recs[1].Value), ShouldBeTrue)
				So(forecast.CountNaN(recs), ShouldEqual, 2)
			})
		})

		Convey("When the header cannot be resolved", func() {
			recs, err := forecast.ParseHistorical("Foo,Bar\n1,2")

			Convey("Then MissingColumn is returned and no records parsed", func() {
				So(errors.Is(err, forecast.ErrMissingColumn), ShouldBeTrue)
				So(recs, ShouldBeNil)
			})
		})

		Convey("When the text is empty", func() {
			_, err := forecast.ParseHistorical("  \n ")

			Convey("Then ErrEmptyCSV is returned", func() {
				So(errors.Is(err, forecast.ErrEmptyCSV), ShouldBeTrue)
			})
		})

		Convey("When the CSV has only a header", func() {
			recs, err := forecast.ParseHistorical("year,value")

			Convey("Then no records and no error", func() {
				So(err, ShouldBeNil)
				So(recs, ShouldBeEmpty)
			})
		})
	})
}

func TestParseHistoricalRecordCount(t *testing.T) {
	Convey("Given CSVs of varying size with either header convention", t, func() {
		for _, header := range []string{"year,value", "ds,y", "Value,Year", "Y,DS"} {
			for n := 0; n <= 25; n += 5 {
				lines := []string{header}
				for i := 0; i < n; i++ {
					lines = append(lines, fmt.Sprintf("%d,%d", 2000+i, i*10))
				}
				recs, err := forecast.ParseHistorical(strings.Join(lines, "\n"))

				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, n)
			}
		}
	})
}
