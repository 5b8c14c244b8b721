// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stockparfait/logging"
	"github.com/stockparfait/quotes/av"
	"github.com/stockparfait/quotes/db"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(t *testing.T) {
	t.Parallel()

	tmpdir, tmpdirErr := os.MkdirTemp("", "test_quotes_list")
	defer os.RemoveAll(tmpdir)

	Convey("Setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("parseFlags", t, func() {
		flags, err := parseFlags([]string{
			"-cache", "path/to/cache", "-symbol", "FCX",
			"-log-level", "warning", "-interval", "day", "-summary"})
		So(err, ShouldBeNil)
		So(flags.DBDir, ShouldEqual, "path/to/cache")
		So(flags.Symbol, ShouldEqual, "FCX")
		So(flags.LogLevel, ShouldEqual, logging.Warning)
		So(flags.Interval, ShouldEqual, av.Daily)
		So(flags.Summary, ShouldBeTrue)

		_, err = parseFlags([]string{"-interval", "60min"})
		So(err, ShouldNotBeNil)
		_, err = parseFlags([]string{"-symbol", "FCX", "-interval", "week"})
		So(err, ShouldNotBeNil)
		_, err = parseFlags([]string{"-symbol", "FCX", "-tail", "-1"})
		So(err, ShouldNotBeNil)
	})

	Convey("printData works", t, func() {
		ctx := context.Background()
		ts := func(m, h int) time.Time { return time.Date(2021, time.Month(m), 15, h, 0, 0, 0, time.UTC) }
		w := db.NewWriter(tmpdir)
		_, err := w.Write(ctx, &db.Chunk{
			Symbol: "FCX", Interval: "60min", Slice: "year1month1",
			Bars: []db.Bar{
				db.TestBar(ts(10, 19), "40.01", "40.14", "40", "40.13", 23456),
				db.TestBar(ts(10, 20), "40.13", "40.2", "40.1", "40.15", 12345),
			},
		})
		So(err, ShouldBeNil)
		_, err = w.Write(ctx, &db.Chunk{
			Symbol: "FCX", Interval: "60min", Slice: "year1month2",
			Bars: []db.Bar{
				db.TestBar(ts(9, 19), "38.4", "38.5", "38.3", "38.5", 2000),
			},
		})
		So(err, ShouldBeNil)

		Convey("bars", func() {
			flags, err := parseFlags([]string{"-cache", tmpdir, "-symbol", "FCX", "-csv"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldBeNil)
			So("\n"+buf.String(), ShouldEqual, `
timestamp,open,high,low,close,volume
2021-09-15 19:00:00,38.4,38.5,38.3,38.5,2000
2021-10-15 19:00:00,40.01,40.14,40,40.13,23456
2021-10-15 20:00:00,40.13,40.2,40.1,40.15,12345
`)
		})

		Convey("last bar", func() {
			flags, err := parseFlags([]string{"-cache", tmpdir, "-symbol", "FCX", "-csv", "-tail", "1"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldBeNil)
			So("\n"+buf.String(), ShouldEqual, `
timestamp,open,high,low,close,volume
2021-10-15 20:00:00,40.13,40.2,40.1,40.15,12345
`)
		})

		Convey("summary", func() {
			flags, err := parseFlags([]string{"-cache", tmpdir, "-symbol", "FCX", "-csv", "-summary"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldBeNil)
			So("\n"+buf.String(), ShouldEqual, `
,FCX 60min
bars,3
first,2021-09-15 19:00:00
last,2021-10-15 20:00:00
mean close,39.5933
stddev close,0.9469
total volume,37801
`)
		})

		Convey("no data", func() {
			flags, err := parseFlags([]string{"-cache", tmpdir, "-symbol", "IBM"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldNotBeNil)
		})
	})
}
