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

// Package pipeline downloads a symbol's price history slice by slice,
// normalizes every response and stores it in the partitioned database.
//
// A run moves through the states
//
//	Validating -> Planning -> (Fetching -> Normalizing -> Writing) x N -> Done
//
// and ends in Failed on the first error. Slices are processed strictly in
// planner order, one at a time; the client's rate limiter is the only place a
// run waits. With SkipFailedSlice a failed slice is recorded and the run
// continues with the next one.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/quotes/av"
	"github.com/stockparfait/quotes/db"
	"github.com/stockparfait/quotes/fault"
)

// State of a pipeline run.
type State int

const (
	Idle State = iota
	Validating
	Planning
	Fetching
	Normalizing
	Writing
	Done
	Failed
)

var stateNames = map[State]string{
	Idle:        "idle",
	Validating:  "validating",
	Planning:    "planning",
	Fetching:    "fetching",
	Normalizing: "normalizing",
	Writing:     "writing",
	Done:        "done",
	Failed:      "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Policy for a failed slice.
type Policy int

const (
	AbortOnError    Policy = iota // the first failed slice fails the run
	SkipFailedSlice               // log and record the failed slice, continue
)

// Request for an intraday history download.
type Request struct {
	Symbol   string      `validate:"required,printascii,excludesall=/\\"`
	Interval av.Interval `validate:"required,oneof=1min 5min 15min 30min 60min"`
	Months   int         `validate:"min=1,max=24"`
}

var validate = validator.New()

func validateSymbol(symbol string) error {
	if err := validate.Var(symbol, "required,printascii,excludesall=/\\"); err != nil {
		return fault.Wrap(fault.InvalidInput, err, "invalid symbol '%s'", symbol)
	}
	if strings.ContainsAny(symbol, " \t") || strings.Trim(symbol, ".") == "" {
		return fault.New(fault.InvalidInput, "invalid symbol '%s'", symbol)
	}
	return nil
}

// Validate the request. Errors are fault.InvalidInput.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fault.Wrap(fault.InvalidInput, err, "invalid request %+v", r)
	}
	return validateSymbol(r.Symbol)
}

// Options of a Pipeline.
type Options struct {
	Policy     Policy
	Columns    *db.ColumnConfig // default: db.NewColumnConfig()
	HTTPClient *http.Client     // default: a new client per run
	Timeout    time.Duration    // of a new HTTP client; 0 = none
}

// Pipeline runs downloads for a Client into a Writer. A Pipeline runs one
// download at a time; concurrent downloads should use separate Pipelines,
// which may share the Client and therefore its rate limits.
type Pipeline struct {
	client *av.Client
	writer *db.Writer
	opts   Options

	mu        sync.Mutex
	state     State
	artifacts []string
	skipped   []av.Slice
}

// New creates a Pipeline.
func New(client *av.Client, writer *db.Writer, opts Options) *Pipeline {
	if opts.Columns == nil {
		opts.Columns = db.NewColumnConfig()
	}
	return &Pipeline{client: client, writer: writer, opts: opts}
}

// State of the current or the last run.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Artifacts are the files written by the current or the last run.
func (p *Pipeline) Artifacts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.artifacts...)
}

// Skipped are the slices that failed under SkipFailedSlice.
func (p *Pipeline) Skipped() []av.Slice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]av.Slice{}, p.skipped...)
}

func (p *Pipeline) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Idle
	p.artifacts = nil
	p.skipped = nil
}

func (p *Pipeline) set(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

func (p *Pipeline) fail(ctx context.Context, err error) error {
	logging.Errorf(ctx, "pipeline failed in state %s: %s", p.State(), err.Error())
	p.set(Failed)
	return err
}

// step is one unit of work: a single query whose response is stored as one
// chunk.
type step struct {
	symbol   string
	interval av.Interval // partition name
	slice    av.Slice
	query    *av.Query
}

func (s step) String() string {
	if s.slice == "" {
		return fmt.Sprintf("%s %s", s.symbol, s.interval)
	}
	return fmt.Sprintf("%s %s %s", s.symbol, s.interval, s.slice)
}

// runStep fetches, normalizes and writes one chunk.
func (p *Pipeline) runStep(ctx context.Context, s step) error {
	p.set(Fetching)
	raw, err := p.client.Fetch(ctx, s.query)
	if err != nil {
		return err
	}
	logging.Infof(ctx, "%s: fetched %d rows", s, raw.Len())

	p.set(Normalizing)
	bars, err := p.opts.Columns.Normalize(raw.Header, raw.Rows, s.query.Function().TimestampLayout())
	if err != nil {
		return err
	}
	chunk := &db.Chunk{
		Symbol:   s.symbol,
		Interval: string(s.interval),
		Slice:    string(s.slice),
		Bars:     bars,
	}

	p.set(Writing)
	path, err := p.writer.Write(ctx, chunk)
	if err != nil {
		return err
	}
	if path != "" {
		p.mu.Lock()
		p.artifacts = append(p.artifacts, path)
		p.mu.Unlock()
	}
	return nil
}

// run executes the steps in order within one session.
func (p *Pipeline) run(ctx context.Context, steps []step) error {
	session, ctx := av.OpenSession(ctx, p.opts.HTTPClient, p.opts.Timeout)
	defer session.Close(ctx)

	for i, s := range steps {
		err := p.runStep(ctx, s)
		if err == nil {
			continue
		}
		err = errors.Annotate(err, "%s (%d of %d) failed while %s", s, i+1, len(steps), p.State())
		if p.opts.Policy == SkipFailedSlice && s.slice != "" && ctx.Err() == nil {
			logging.Warningf(ctx, "skipping: %s", err.Error())
			p.mu.Lock()
			p.skipped = append(p.skipped, s.slice)
			p.mu.Unlock()
			continue
		}
		return p.fail(ctx, err)
	}
	p.set(Done)
	logging.Infof(ctx, "done: %d files written, %d slices skipped",
		len(p.Artifacts()), len(p.Skipped()))
	return nil
}

// FetchIntraday downloads req.Months slices of extended intraday history.
// Invalid requests fail before any network call. The returned error is a
// *fault.Error annotated with the failed slice.
func (p *Pipeline) FetchIntraday(ctx context.Context, req Request) error {
	p.reset()
	p.set(Validating)
	if err := req.Validate(); err != nil {
		return p.fail(ctx, err)
	}

	p.set(Planning)
	slices, err := av.PlanSlices(req.Months)
	if err != nil {
		return p.fail(ctx, err)
	}
	base := av.NewQuery(av.TimeSeriesIntradayExtended).Symbol(req.Symbol).Interval(req.Interval)
	steps := make([]step, len(slices))
	for i, s := range slices {
		steps[i] = step{
			symbol:   req.Symbol,
			interval: req.Interval,
			slice:    s,
			query:    base.Slice(s),
		}
	}
	logging.Infof(ctx, "%s %s: planned %d slices", req.Symbol, req.Interval, len(steps))
	return p.run(ctx, steps)
}

// FetchDailyAdjusted downloads the daily adjusted series of the symbol into
// the day partition. It is a single call with no slices.
func (p *Pipeline) FetchDailyAdjusted(ctx context.Context, symbol string) error {
	p.reset()
	p.set(Validating)
	if err := validateSymbol(symbol); err != nil {
		return p.fail(ctx, err)
	}
	return p.run(ctx, []step{{
		symbol:   symbol,
		interval: av.Daily,
		query:    av.NewQuery(av.TimeSeriesDailyAdjusted).Symbol(symbol),
	}})
}
