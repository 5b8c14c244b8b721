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

package av

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stockparfait/quotes/fault"
	"github.com/stockparfait/quotes/ratelimit"
	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

const testCSV = `time,open,high,low,close,volume
2021-10-15 20:00:00,40.13,40.2,40.1,40.15,12345
2021-10-15 19:00:00,40.01,40.14,40,40.13,23456
`

const testQuota = "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute and 500 calls per day."

func TestAV(t *testing.T) {
	t.Parallel()

	Convey("PlanSlices", t, func() {
		Convey("returns a prefix of the canonical sequence", func() {
			all := AllSlices()
			So(len(all), ShouldEqual, MaxHistoryMonths)
			So(all[0], ShouldEqual, Slice("year1month1"))
			So(all[11], ShouldEqual, Slice("year1month12"))
			So(all[12], ShouldEqual, Slice("year2month1"))
			So(all[23], ShouldEqual, Slice("year2month12"))

			for n := 1; n <= MaxHistoryMonths; n++ {
				s, err := PlanSlices(n)
				So(err, ShouldBeNil)
				So(len(s), ShouldEqual, n)
				So(s, ShouldResemble, all[:n])
				seen := map[Slice]bool{}
				for _, x := range s {
					So(seen[x], ShouldBeFalse)
					seen[x] = true
				}
			}
		})

		Convey("rejects out of range depth", func() {
			for _, n := range []int{0, 25, -1} {
				_, err := PlanSlices(n)
				So(fault.Is(err, fault.InvalidInput), ShouldBeTrue)
			}
		})
	})

	Convey("Query builds nondestructively", t, func() {
		q := NewQuery(TimeSeriesIntradayExtended)
		q2 := q.Symbol("FCX").Interval(Interval60Min).Slice("year1month2")
		So(q.Values(), ShouldResemble, url.Values{
			"function":   {"TIME_SERIES_INTRADAY_EXTENDED"},
			"datatype":   {"csv"},
			"outputsize": {"compact"},
		})
		So(q2.Values(), ShouldResemble, url.Values{
			"function":   {"TIME_SERIES_INTRADAY_EXTENDED"},
			"symbol":     {"FCX"},
			"interval":   {"60min"},
			"slice":      {"year1month2"},
			"datatype":   {"csv"},
			"outputsize": {"compact"},
		})
		So(q2.String(), ShouldNotContainSubstring, "apikey")
		So(q.OutputSize(OutputSizeFull).Values().Get("outputsize"), ShouldEqual, "full")
	})

	Convey("Functions and intervals", t, func() {
		So(TimeSeriesDailyAdjusted.IsSeries(), ShouldBeTrue)
		So(SymbolSearch.IsSeries(), ShouldBeFalse)
		So(Function("FOO").IsSeries(), ShouldBeFalse)
		So(TimeSeriesDailyAdjusted.TimestampLayout(), ShouldEqual, "2006-01-02")
		So(TimeSeriesIntradayExtended.TimestampLayout(), ShouldEqual, "2006-01-02 15:04:05")

		i, err := ParseInterval("15min")
		So(err, ShouldBeNil)
		So(i, ShouldEqual, Interval15Min)
		_, err = ParseInterval("2min")
		So(fault.Is(err, fault.InvalidInput), ShouldBeTrue)
		So(Daily.IsIntraday(), ShouldBeFalse)
	})

	Convey("SentinelClassifier", t, func() {
		c := NewSentinelClassifier()
		So(c.Classify(testCSV), ShouldEqual, ResponseOK)
		So(c.Classify(testQuota), ShouldEqual, ResponseSoftQuota)
		So(c.Classify(`{"Note": "higher API call frequency"}`), ShouldEqual, ResponseSoftQuota)
		So(c.Classify(`{"Error Message": "Invalid API call."}`), ShouldEqual, ResponseMalformed)
		So(c.Classify("  \n"), ShouldEqual, ResponseMalformed)

		custom := &SentinelClassifier{Sentinels: []string{"slow down"}}
		So(custom.Classify("please slow down"), ShouldEqual, ResponseSoftQuota)
		So(custom.Classify(testQuota), ShouldEqual, ResponseOK)
	})

	Convey("ParseResponse", t, func() {
		c := NewSentinelClassifier()

		Convey("parses a table", func() {
			r, err := ParseResponse(testCSV, c)
			So(err, ShouldBeNil)
			So(r.Header, ShouldResemble, []string{"time", "open", "high", "low", "close", "volume"})
			So(r.Len(), ShouldEqual, 2)
			So(r.Rows[1][0], ShouldEqual, "2021-10-15 19:00:00")
		})

		Convey("strips byte order mark", func() {
			r, err := ParseResponse("\ufeff"+testCSV, c)
			So(err, ShouldBeNil)
			So(r.Header[0], ShouldEqual, "time")
		})

		Convey("header only is zero rows", func() {
			r, err := ParseResponse("time,open,high,low,close,volume\n", c)
			So(err, ShouldBeNil)
			So(r.Len(), ShouldEqual, 0)
		})

		Convey("quota message carries the body", func() {
			_, err := ParseResponse(testQuota, c)
			So(fault.Is(err, fault.QuotaExceeded), ShouldBeTrue)
			So(fault.BodyOf(err), ShouldEqual, testQuota)
			So(err.Error(), ShouldContainSubstring, testQuota)
		})

		Convey("ragged rows are malformed", func() {
			_, err := ParseResponse("a,b,c\n1,2\n", c)
			So(fault.Is(err, fault.MalformedResponse), ShouldBeTrue)
		})

		Convey("invalid UTF-8 is malformed", func() {
			_, err := ParseResponse("a,b\n\xff\xfe,1\n", c)
			So(fault.Is(err, fault.MalformedResponse), ShouldBeTrue)
		})

		Convey("empty header is malformed", func() {
			_, err := ParseResponse(",,\n1,2,3\n", c)
			So(fault.Is(err, fault.MalformedResponse), ShouldBeTrue)
		})
	})

	Convey("Client works with the server", t, func() {
		server := testutil.NewTestServer()
		defer server.Close()

		start := time.Date(2021, 10, 18, 9, 30, 0, 0, time.UTC)
		clock := ratelimit.NewTestClock(start)
		policy := ratelimit.Policy{MaxCalls: 2, Window: time.Minute}
		client := NewClient("testkey", Options{
			BaseURL:      server.URL(),
			SeriesPolicy: policy,
			SearchPolicy: policy,
			Clock:        clock,
		})
		session, ctx := OpenSession(context.Background(), server.Client(), 0)
		defer session.Close(ctx)
		So(session.ID, ShouldNotEqual, "")

		Convey("Fetch sends the full query", func() {
			server.ResponseBody = []string{testCSV}
			q := NewQuery(TimeSeriesIntradayExtended).Symbol("FCX").
				Interval(Interval60Min).Slice("year1month1")
			r, err := client.Fetch(ctx, q)
			So(err, ShouldBeNil)
			So(r.Len(), ShouldEqual, 2)
			So(server.RequestPath, ShouldEqual, "/query")
			expected := q.Values()
			expected.Set("apikey", "testkey")
			So(server.RequestQuery, ShouldResemble, expected)
			So(client.SeriesLimiter().Calls(), ShouldEqual, 1)
		})

		Convey("Fetch reports the provider's quota message", func() {
			server.ResponseBody = []string{testQuota}
			_, err := client.Fetch(ctx, NewQuery(TimeSeriesDailyAdjusted).Symbol("FCX"))
			So(fault.Is(err, fault.QuotaExceeded), ShouldBeTrue)
			So(fault.BodyOf(err), ShouldEqual, testQuota)
		})

		Convey("HTTP error status is a network error, not retried", func() {
			server.ResponseStatus = []int{http.StatusInternalServerError, http.StatusOK}
			server.ResponseBody = []string{testCSV}
			q := NewQuery(TimeSeriesDailyAdjusted).Symbol("FCX")
			_, err := client.Fetch(ctx, q)
			So(fault.Is(err, fault.Network), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "500")
			So(client.SeriesLimiter().Calls(), ShouldEqual, 1)
			So(len(clock.Sleeps()), ShouldEqual, 0)

			// The 500 was consumed by exactly one request.
			r, err := client.Fetch(ctx, q)
			So(err, ShouldBeNil)
			So(r.Len(), ShouldEqual, 2)
		})

		Convey("permanent HTTP failure is a network error", func() {
			server.ResponseStatus = []int{http.StatusForbidden}
			_, err := client.Fetch(ctx, NewQuery(TimeSeriesDailyAdjusted).Symbol("FCX"))
			So(fault.Is(err, fault.Network), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "403")
		})

		Convey("transport failure is a network error", func() {
			down := testutil.NewTestServer()
			downURL := down.URL()
			down.Close()
			c := NewClient("testkey", Options{BaseURL: downURL, Clock: clock})
			_, err := c.Fetch(ctx, NewQuery(TimeSeriesDailyAdjusted).Symbol("FCX"))
			So(fault.Is(err, fault.Network), ShouldBeTrue)
			So(c.SeriesLimiter().Calls(), ShouldEqual, 1)
		})

		Convey("Fetch is paced by the series limiter", func() {
			server.ResponseBody = []string{testCSV, testCSV, testCSV}
			q := NewQuery(TimeSeriesDailyAdjusted).Symbol("FCX")
			for i := 0; i < 3; i++ {
				_, err := client.Fetch(ctx, q)
				So(err, ShouldBeNil)
			}
			So(clock.Sleeps(), ShouldResemble, []time.Duration{time.Minute})
		})

		Convey("SearchSymbols uses its own limiter", func() {
			server.ResponseBody = []string{"symbol,name\nFCX,Freeport-McMoRan Inc\n"}
			r, err := client.SearchSymbols(ctx, "freeport")
			So(err, ShouldBeNil)
			So(r.Rows, ShouldResemble, [][]string{{"FCX", "Freeport-McMoRan Inc"}})
			So(server.RequestQuery.Get("function"), ShouldEqual, "SYMBOL_SEARCH")
			So(server.RequestQuery.Get("keywords"), ShouldEqual, "freeport")
			So(client.SearchLimiter().Calls(), ShouldEqual, 1)
			So(client.SeriesLimiter().Calls(), ShouldEqual, 0)

			_, err = client.SearchSymbols(ctx, " ")
			So(fault.Is(err, fault.InvalidInput), ShouldBeTrue)
		})
	})

	Convey("Client in context", t, func() {
		ctx := context.Background()
		So(GetClient(ctx), ShouldBeNil)
		c := NewClient("key", Options{})
		So(GetClient(UseClient(ctx, c)), ShouldEqual, c)
		So(c.SeriesLimiter().Policy(), ShouldResemble, DefaultPolicy)
		So(c.baseURL, ShouldEqual, URL)
	})
}
