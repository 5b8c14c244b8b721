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

package db

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockparfait/errors"
)

// TimeLayout is the layout for printing bar timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// Bar is a single OHLCV row. Timestamps are the provider's wall clock time
// stored as UTC without conversion.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    uint64
}

// TestBar creates a Bar for use in tests. Prices are decimal strings.
func TestBar(ts time.Time, open, high, low, close string, volume uint64) Bar {
	return Bar{
		Timestamp: ts,
		Open:      decimal.RequireFromString(open),
		High:      decimal.RequireFromString(high),
		Low:       decimal.RequireFromString(low),
		Close:     decimal.RequireFromString(close),
		Volume:    volume,
	}
}

// BarHeader is the CSV header matching Bar.CSV().
func BarHeader() []string {
	return []string{"timestamp", "open", "high", "low", "close", "volume"}
}

// CSV implements table.Row.
func (b Bar) CSV() []string {
	return []string{
		b.Timestamp.Format(TimeLayout),
		b.Open.String(),
		b.High.String(),
		b.Low.String(),
		b.Close.String(),
		fmt.Sprintf("%d", b.Volume),
	}
}

// Chunk is a sequence of bars normalized from a single response, in the
// order the provider returned them.
type Chunk struct {
	Symbol   string
	Interval string // e.g. "60min", or "day" for daily series
	Slice    string // empty for series without slices
	Bars     []Bar
}

// Len is the number of bars.
func (c *Chunk) Len() int { return len(c.Bars) }

// Start is the timestamp of the first bar, or zero time for an empty chunk.
func (c *Chunk) Start() time.Time {
	if len(c.Bars) == 0 {
		return time.Time{}
	}
	return c.Bars[0].Timestamp
}

// columns is the on-disk layout of a chunk: one slice per column, so each
// column keeps its type through a write/read cycle.
type columns struct {
	Symbol    string
	Interval  string
	Slice     string
	Timestamp []time.Time
	Open      []decimal.Decimal
	High      []decimal.Decimal
	Low       []decimal.Decimal
	Close     []decimal.Decimal
	Volume    []uint64
}

func toColumns(c *Chunk) *columns {
	n := len(c.Bars)
	cols := &columns{
		Symbol:    c.Symbol,
		Interval:  c.Interval,
		Slice:     c.Slice,
		Timestamp: make([]time.Time, n),
		Open:      make([]decimal.Decimal, n),
		High:      make([]decimal.Decimal, n),
		Low:       make([]decimal.Decimal, n),
		Close:     make([]decimal.Decimal, n),
		Volume:    make([]uint64, n),
	}
	for i, b := range c.Bars {
		cols.Timestamp[i] = b.Timestamp
		cols.Open[i] = b.Open
		cols.High[i] = b.High
		cols.Low[i] = b.Low
		cols.Close[i] = b.Close
		cols.Volume[i] = b.Volume
	}
	return cols
}

func (cols *columns) chunk() (*Chunk, error) {
	n := len(cols.Timestamp)
	for _, l := range []int{len(cols.Open), len(cols.High), len(cols.Low), len(cols.Close), len(cols.Volume)} {
		if l != n {
			return nil, errors.Reason("column length %d != %d timestamps", l, n)
		}
	}
	c := &Chunk{
		Symbol:   cols.Symbol,
		Interval: cols.Interval,
		Slice:    cols.Slice,
		Bars:     make([]Bar, n),
	}
	for i := range c.Bars {
		c.Bars[i] = Bar{
			Timestamp: cols.Timestamp[i],
			Open:      cols.Open[i],
			High:      cols.High[i],
			Low:       cols.Low[i],
			Close:     cols.Close[i],
			Volume:    cols.Volume[i],
		}
	}
	return c, nil
}
