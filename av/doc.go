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

// Package av implements the time series query API of Alpha Vantage.
//
// Official documentation is at https://www.alphavantage.co/documentation/ .
//
// All queries are made against a single endpoint, {URL}/query, with the
// function name and its arguments as query parameters. This package always
// requests CSV output, so every successful response is a table with a header
// row. The extended intraday history is split into Slices, each one an
// addressable window of about a month; PlanSlices computes which slices to
// request for a given history depth.
//
// The provider enforces a call frequency quota per API key. Exceeding it does
// not produce an HTTP error: the response is a 200 with a plain-text message
// instead of a table. Client.Fetch detects such messages with a Classifier and
// reports them as fault.QuotaExceeded. Independently of that, each Client paces
// its own calls with a ratelimit.Limiter per metered operation, so a well
// configured client should rarely hit the server-side quota.
package av
