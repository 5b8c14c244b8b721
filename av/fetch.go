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
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/quotes/fault"
	"github.com/stockparfait/quotes/ratelimit"
)

// RawChunk is an unparsed table as returned for one query.
type RawChunk struct {
	Header []string
	Rows   [][]string
}

// Len is the number of data rows.
func (r *RawChunk) Len() int { return len(r.Rows) }

func (c *Client) limiter(f Function) *ratelimit.Limiter {
	if f == SymbolSearch {
		return c.search
	}
	return c.series
}

// Fetch executes the query through the rate limiter of its function and
// parses the response. The HTTP client is taken from the context, see
// OpenSession. Each call makes exactly one HTTP request; failures are not
// retried.
//
// Errors are *fault.Error of kind Network, QuotaExceeded or MalformedResponse.
func (c *Client) Fetch(ctx context.Context, q *Query) (*RawChunk, error) {
	get := ratelimit.Wrap(c.limiter(q.Function()), func(ctx context.Context) (string, error) {
		return c.get(ctx, q)
	})
	text, err := get(ctx)
	if err != nil {
		return nil, err
	}
	return ParseResponse(text, c.classifier)
}

// get performs a single GET and returns the decoded body text.
func (c *Client) get(ctx context.Context, q *Query) (string, error) {
	uri := c.baseURL + queryPath
	query := q.Values()
	query.Set("apikey", c.apiKey)

	logging.Debugf(ctx, "GET %s", q)
	resp, err := fetch.Get(ctx, uri, query)
	if resp != nil {
		defer resp.Body.Close()
		// fetch reports a 5xx with a nil cause, so its error is not formatted.
		if !fetch.ResponseOK(resp) {
			return "", fault.New(fault.Network, "GET %s: HTTP status %s", q, resp.Status)
		}
	}
	if err != nil {
		return "", fault.Wrap(fault.Network, err, "GET %s", q)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fault.Wrap(fault.Network, err, "GET %s: failed to read response body", q)
	}
	if !utf8.Valid(data) {
		return "", fault.New(fault.MalformedResponse,
			"GET %s: response is not valid UTF-8", q)
	}
	return string(data), nil
}

// ParseResponse classifies the decoded response text and parses it as CSV
// with the first row as the header. A quota message is reported as
// fault.QuotaExceeded with the full text attached as the error's Body.
func ParseResponse(text string, classifier Classifier) (*RawChunk, error) {
	if !utf8.ValidString(text) {
		return nil, fault.New(fault.MalformedResponse, "response is not valid UTF-8")
	}
	text = strings.TrimPrefix(text, "\ufeff")
	switch classifier.Classify(text) {
	case ResponseSoftQuota:
		return nil, fault.New(fault.QuotaExceeded,
			"the provider rejected the call").WithBody(text)
	case ResponseMalformed:
		return nil, fault.New(fault.MalformedResponse,
			"response is not a table").WithBody(text)
	}
	r := csv.NewReader(strings.NewReader(text))
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fault.Wrap(fault.MalformedResponse,
			errors.Annotate(err, "failed to parse CSV"), "bad table")
	}
	if len(records) == 0 || emptyHeader(records[0]) {
		return nil, fault.New(fault.MalformedResponse, "missing header row")
	}
	return &RawChunk{Header: records[0], Rows: records[1:]}, nil
}

func emptyHeader(h []string) bool {
	for _, c := range h {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// SearchSymbols runs SYMBOL_SEARCH for the keywords through its own limiter.
// The result table is returned as is.
func (c *Client) SearchSymbols(ctx context.Context, keywords string) (*RawChunk, error) {
	if strings.TrimSpace(keywords) == "" {
		return nil, fault.New(fault.InvalidInput, "empty search keywords")
	}
	res, err := c.Fetch(ctx, NewQuery(SymbolSearch).Keywords(keywords))
	if err != nil {
		return nil, errors.Annotate(err, "search '%s'", keywords)
	}
	logging.Infof(ctx, "search '%s': %d matches", keywords, res.Len())
	return res, nil
}
