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
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/quotes/av"
	"github.com/stockparfait/quotes/db"
	"github.com/stockparfait/quotes/table"
)

type Flags struct {
	DBDir    string // default: ~/.stockparfait/quotes
	LogLevel logging.Level
	Interval av.Interval
	Symbol   string // required
	Summary  bool   // print summary statistics instead of bars
	CSV      bool   // dump CSV format; default: text.
	Rows     int    // print only the first rows
	Tail     int    // print only the last rows
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	var interval string
	fs := flag.NewFlagSet("quotes-list", flag.ExitOnError)
	fs.StringVar(&flags.DBDir, "cache",
		filepath.Join(os.Getenv("HOME"), ".stockparfait", "quotes"),
		"path to the database")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&interval, "interval", string(av.Interval60Min),
		"partition: 1min, 5min, 15min, 30min, 60min or day")
	fs.StringVar(&flags.Symbol, "symbol", "", "symbol to print (required)")
	fs.BoolVar(&flags.Summary, "summary", false, "print summary statistics")
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")
	fs.IntVar(&flags.Rows, "rows", 0, "print only the first N rows")
	fs.IntVar(&flags.Tail, "tail", 0, "print only the last N rows")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if flags.Symbol == "" {
		return nil, errors.Reason("missing required -symbol argument")
	}
	if interval == string(av.Daily) {
		flags.Interval = av.Daily
	} else if flags.Interval, err = av.ParseInterval(interval); err != nil {
		return nil, errors.Annotate(err, "invalid -interval")
	}
	if flags.Rows < 0 || flags.Tail < 0 {
		return nil, errors.Reason("-rows and -tail must be >= 0")
	}
	return &flags, nil
}

func printData(ctx context.Context, flags *Flags, w io.Writer) error {
	bars, err := db.LoadAll(ctx, flags.DBDir, string(flags.Interval), flags.Symbol)
	if err != nil {
		return errors.Annotate(err, "failed to load bars")
	}
	if len(bars) == 0 {
		return errors.Reason("no data for %s %s", flags.Symbol, flags.Interval)
	}
	var tbl *table.Table
	params := table.Params{Rows: flags.Rows, Tail: flags.Tail}
	if flags.Summary {
		tbl = table.NewSummaryTable(flags.Symbol, string(flags.Interval), db.Summarize(bars))
		params = table.Params{}
	} else {
		tbl = table.NewBarTable(bars)
	}
	if flags.CSV {
		if err := tbl.WriteCSV(w, params); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	if err := tbl.WriteText(w, params); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := printData(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
