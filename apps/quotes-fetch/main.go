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
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/quotes/av"
	"github.com/stockparfait/quotes/config"
	"github.com/stockparfait/quotes/db"
	"github.com/stockparfait/quotes/fault"
	"github.com/stockparfait/quotes/pipeline"
	"github.com/stockparfait/quotes/ratelimit"
	"github.com/stockparfait/quotes/table"
)

type Flags struct {
	DBDir      string // default: ~/.stockparfait/quotes
	LogLevel   logging.Level
	Symbols    []string
	Interval   av.Interval
	Months     int
	Daily      bool   // download daily adjusted series instead of intraday
	Search     string // only search symbols by keywords
	Parallel   int    // symbols downloaded concurrently
	SkipFailed bool
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	var symbols, interval string
	fs := flag.NewFlagSet("quotes-fetch", flag.ExitOnError)
	fs.StringVar(&flags.DBDir, "cache",
		filepath.Join(os.Getenv("HOME"), ".stockparfait", "quotes"),
		"configuration and data path")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&symbols, "symbols", "FCX", "comma-separated list of symbols")
	fs.StringVar(&interval, "interval", string(av.Interval60Min),
		"bar interval: 1min, 5min, 15min, 30min, 60min")
	fs.IntVar(&flags.Months, "months", 3, "months of intraday history, 1..24")
	fs.BoolVar(&flags.Daily, "daily", false, "download daily adjusted series")
	fs.StringVar(&flags.Search, "search", "", "search symbols by keywords and exit")
	fs.IntVar(&flags.Parallel, "parallel", 1, "number of symbols to download concurrently")
	fs.BoolVar(&flags.SkipFailed, "skip-failed", false,
		"skip a failed slice and continue; default: abort the symbol")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	for _, s := range strings.Split(symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			flags.Symbols = append(flags.Symbols, s)
		}
	}
	if len(flags.Symbols) == 0 && flags.Search == "" {
		return nil, errors.Reason("no symbols given")
	}
	var err error
	if flags.Interval, err = av.ParseInterval(interval); err != nil {
		return nil, errors.Annotate(err, "invalid -interval")
	}
	if flags.Parallel < 1 {
		return nil, errors.Reason("-parallel must be >= 1, got %d", flags.Parallel)
	}
	return &flags, nil
}

// newClient creates the API client from the configuration. The clock is
// injected for tests; nil means the system clock.
func newClient(c *config.Config, clock ratelimit.Clock) *av.Client {
	return av.NewClient(c.AlphaVantage.AccessKey, av.Options{
		BaseURL:      c.AlphaVantage.URL,
		SeriesPolicy: c.AlphaVantage.SeriesPolicy(),
		SearchPolicy: c.AlphaVantage.SearchPolicy(),
		Clock:        clock,
	})
}

// search prints the symbols matching flags.Search using the Client from the
// context.
func search(ctx context.Context, hc *http.Client, timeout time.Duration, flags *Flags, w io.Writer) error {
	client := av.GetClient(ctx)
	if client == nil {
		return errors.Reason("search: no client in context")
	}
	session, ctx := av.OpenSession(ctx, hc, timeout)
	defer session.Close(ctx)

	res, err := client.SearchSymbols(ctx, flags.Search)
	if err != nil {
		return errors.Annotate(err, "search failed")
	}
	return table.NewRawTable(res.Header, res.Rows).WriteText(w, table.Params{})
}

// download runs a pipeline per symbol using the Client from the context. The
// pipelines share the Client and therefore its rate limits.
func download(ctx context.Context, hc *http.Client, timeout time.Duration, flags *Flags) error {
	client := av.GetClient(ctx)
	if client == nil {
		return errors.Reason("download: no client in context")
	}
	writer := db.NewWriter(flags.DBDir)
	opts := pipeline.Options{HTTPClient: hc, Timeout: timeout}
	if flags.SkipFailed {
		opts.Policy = pipeline.SkipFailedSlice
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(flags.Parallel)
	for _, symbol := range flags.Symbols {
		symbol := symbol
		g.Go(func() error {
			p := pipeline.New(client, writer, opts)
			var err error
			if flags.Daily {
				err = p.FetchDailyAdjusted(ctx, symbol)
			} else {
				err = p.FetchIntraday(ctx, pipeline.Request{
					Symbol:   symbol,
					Interval: flags.Interval,
					Months:   flags.Months,
				})
			}
			if err != nil {
				if fault.Is(err, fault.QuotaExceeded) {
					logging.Warningf(ctx, "%s: call frequency exceeded, try again later", symbol)
				}
				return errors.Annotate(err, "failed to download %s", symbol)
			}
			if skipped := p.Skipped(); len(skipped) > 0 {
				logging.Warningf(ctx, "%s: skipped slices %v", symbol, skipped)
			}
			return nil
		})
	}
	return g.Wait()
}

func run(ctx context.Context, flags *Flags, hc *http.Client, clock ratelimit.Clock, w io.Writer) error {
	c, err := config.Load(flags.DBDir)
	if err != nil {
		return errors.Annotate(err, "failed to load config")
	}
	ctx = av.UseClient(ctx, newClient(c, clock))
	if flags.Search != "" {
		return search(ctx, hc, c.AlphaVantage.Timeout(), flags, w)
	}
	return download(ctx, hc, c.AlphaVantage.Timeout(), flags)
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

	if err := run(ctx, flags, nil, nil, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
