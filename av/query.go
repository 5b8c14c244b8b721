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
	"fmt"
	"net/url"

	"golang.org/x/exp/slices"

	"github.com/stockparfait/quotes/fault"
)

// Function is the name of an API function.
type Function string

// Supported API functions.
const (
	TimeSeriesIntraday         = Function("TIME_SERIES_INTRADAY")
	TimeSeriesIntradayExtended = Function("TIME_SERIES_INTRADAY_EXTENDED")
	TimeSeriesDaily            = Function("TIME_SERIES_DAILY")
	TimeSeriesDailyAdjusted    = Function("TIME_SERIES_DAILY_ADJUSTED")
	SymbolSearch               = Function("SYMBOL_SEARCH")
)

// Functions lists all the supported functions.
var Functions = []Function{
	TimeSeriesIntraday,
	TimeSeriesIntradayExtended,
	TimeSeriesDaily,
	TimeSeriesDailyAdjusted,
	SymbolSearch,
}

// IsSeries is true for the functions returning a time series of bars.
func (f Function) IsSeries() bool {
	return f != SymbolSearch && slices.Contains(Functions, f)
}

// TimestampLayout is the time.Parse layout of the timestamp column in the
// function's CSV output.
func (f Function) TimestampLayout() string {
	switch f {
	case TimeSeriesDaily, TimeSeriesDailyAdjusted:
		return "2006-01-02"
	}
	return "2006-01-02 15:04:05"
}

// Interval between bars. Intraday intervals are API values; Daily is only
// used for naming storage partitions of daily series.
type Interval string

// Interval values.
const (
	Interval1Min  = Interval("1min")
	Interval5Min  = Interval("5min")
	Interval15Min = Interval("15min")
	Interval30Min = Interval("30min")
	Interval60Min = Interval("60min")
	Daily         = Interval("day")
)

// IntradayIntervals are the intervals accepted by the intraday functions.
var IntradayIntervals = []Interval{
	Interval1Min, Interval5Min, Interval15Min, Interval30Min, Interval60Min,
}

// IsIntraday checks that the interval is one of IntradayIntervals.
func (i Interval) IsIntraday() bool {
	return slices.Contains(IntradayIntervals, i)
}

// ParseInterval validates an intraday interval string.
func ParseInterval(s string) (Interval, error) {
	i := Interval(s)
	if !i.IsIntraday() {
		return "", fault.New(fault.InvalidInput,
			"interval '%s' is not one of %v", s, IntradayIntervals)
	}
	return i, nil
}

// Default query options.
const (
	DataTypeCSV       = "csv"
	OutputSizeCompact = "compact"
	OutputSizeFull    = "full"
)

// Query is a builder for an API query. Builder methods never modify the
// receiver, they return a modified copy.
type Query struct {
	function   Function
	symbol     string
	interval   Interval
	slice      Slice
	keywords   string
	outputSize string
}

// NewQuery creates a query for the function with CSV output and compact size.
func NewQuery(f Function) *Query {
	return &Query{function: f, outputSize: OutputSizeCompact}
}

// Copy the query.
func (q *Query) Copy() *Query {
	q2 := *q
	return &q2
}

// Function of the query.
func (q *Query) Function() Function { return q.function }

// Symbol sets the ticker symbol.
func (q *Query) Symbol(symbol string) *Query {
	q2 := q.Copy()
	q2.symbol = symbol
	return q2
}

// Interval sets the bar interval for intraday functions.
func (q *Query) Interval(i Interval) *Query {
	q2 := q.Copy()
	q2.interval = i
	return q2
}

// Slice sets the history slice for the extended intraday function.
func (q *Query) Slice(s Slice) *Query {
	q2 := q.Copy()
	q2.slice = s
	return q2
}

// Keywords sets the search string for SymbolSearch.
func (q *Query) Keywords(k string) *Query {
	q2 := q.Copy()
	q2.keywords = k
	return q2
}

// OutputSize sets "compact" or "full" output.
func (q *Query) OutputSize(size string) *Query {
	q2 := q.Copy()
	q2.outputSize = size
	return q2
}

// Values returns the URL query values, except the API key. Each call creates
// a new object.
func (q *Query) Values() url.Values {
	v := make(url.Values)
	v.Set("function", string(q.function))
	if q.symbol != "" {
		v.Set("symbol", q.symbol)
	}
	if q.interval != "" {
		v.Set("interval", string(q.interval))
	}
	if q.slice != "" {
		v.Set("slice", string(q.slice))
	}
	if q.keywords != "" {
		v.Set("keywords", q.keywords)
	}
	v.Set("datatype", DataTypeCSV)
	if q.outputSize != "" {
		v.Set("outputsize", q.outputSize)
	}
	return v
}

// String representation of the query for logs. It never contains the key.
func (q *Query) String() string {
	return fmt.Sprintf("%s?%s", queryPath, q.Values().Encode())
}
