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
	"time"

	"github.com/google/uuid"

	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/quotes/ratelimit"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// URL is the default base URL of the server. It may be overwritten in tests
// before creating a new client.
var URL = "https://www.alphavantage.co"

const queryPath = "/query"

// DefaultPolicy is the free tier call frequency: 5 calls per minute.
var DefaultPolicy = ratelimit.Policy{MaxCalls: 5, Window: time.Minute}

// Options of a Client. Zero values are replaced by defaults.
type Options struct {
	BaseURL      string           // default: URL
	SeriesPolicy ratelimit.Policy // time series downloads; default: DefaultPolicy
	SearchPolicy ratelimit.Policy // symbol search; default: DefaultPolicy
	Clock        ratelimit.Clock  // default: ratelimit.SystemClock
	Classifier   Classifier       // default: NewSentinelClassifier()
}

// Client for querying the API. The limiters are owned by the Client, so all
// the callers sharing a Client share the same quota windows.
type Client struct {
	baseURL    string
	apiKey     string
	series     *ratelimit.Limiter
	search     *ratelimit.Limiter
	classifier Classifier
}

// NewClient creates a new client with the API key.
func NewClient(apiKey string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = URL
	}
	if opts.SeriesPolicy == (ratelimit.Policy{}) {
		opts.SeriesPolicy = DefaultPolicy
	}
	if opts.SearchPolicy == (ratelimit.Policy{}) {
		opts.SearchPolicy = DefaultPolicy
	}
	if opts.Clock == nil {
		opts.Clock = ratelimit.SystemClock
	}
	if opts.Classifier == nil {
		opts.Classifier = NewSentinelClassifier()
	}
	return &Client{
		baseURL:    opts.BaseURL,
		apiKey:     apiKey,
		series:     ratelimit.New("series", opts.SeriesPolicy, opts.Clock),
		search:     ratelimit.New("search", opts.SearchPolicy, opts.Clock),
		classifier: opts.Classifier,
	}
}

// SeriesLimiter paces time series downloads.
func (c *Client) SeriesLimiter() *ratelimit.Limiter { return c.series }

// SearchLimiter paces symbol searches.
func (c *Client) SearchLimiter() *ratelimit.Limiter { return c.search }

// UseClient injects the client into the context.
func UseClient(ctx context.Context, c *Client) context.Context {
	return context.WithValue(ctx, clientContextKey, c)
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// Session is a reusable HTTP connection context for a sequence of requests.
// Open it once per run and always Close it, including on error.
type Session struct {
	ID     string
	client *http.Client
	start  time.Time
}

// OpenSession binds an HTTP client to the context for all the requests made
// with it. A nil hc creates a new client with the given timeout (0 means no
// timeout).
func OpenSession(ctx context.Context, hc *http.Client, timeout time.Duration) (*Session, context.Context) {
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	s := &Session{ID: uuid.NewString(), client: hc, start: time.Now()}
	logging.Infof(ctx, "session %s: open", s.ID)
	return s, fetch.UseClient(ctx, hc)
}

// Close releases idle connections of the session.
func (s *Session) Close(ctx context.Context) {
	s.client.CloseIdleConnections()
	logging.Infof(ctx, "session %s: closed after %s", s.ID,
		time.Since(s.start).Round(time.Millisecond))
}
