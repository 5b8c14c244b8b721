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

// Package config reads the quote downloader configuration file.
package config

import (
	"io"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/quotes/ratelimit"
)

// FileName of the configuration file in the cache directory.
const FileName = "config.toml"

// Sample configuration printed when the file is missing.
const Sample = `[alphavantage]
accesskey = "YourSecretKey"
# url = "https://www.alphavantage.co"
# calls = 5
# window_seconds = 60
# search_calls = 5
# search_window_seconds = 60
# timeout_seconds = 30
`

// AlphaVantage is the provider section.
type AlphaVantage struct {
	AccessKey           string `json:"accesskey" required:"true"`
	URL                 string `json:"url" default:"https://www.alphavantage.co"`
	Calls               int    `json:"calls" default:"5"`
	WindowSeconds       int    `json:"window_seconds" default:"60"`
	SearchCalls         int    `json:"search_calls" default:"5"`
	SearchWindowSeconds int    `json:"search_window_seconds" default:"60"`
	TimeoutSeconds      int    `json:"timeout_seconds" default:"30"`
}

var _ Section = &AlphaVantage{}

// InitSection implements Section.
func (a *AlphaVantage) InitSection(js any) error {
	if err := Init(a, js); err != nil {
		return err
	}
	if err := a.SeriesPolicy().Validate(); err != nil {
		return errors.Annotate(err, "invalid calls / window_seconds")
	}
	if err := a.SearchPolicy().Validate(); err != nil {
		return errors.Annotate(err, "invalid search_calls / search_window_seconds")
	}
	if a.TimeoutSeconds < 0 {
		return errors.Reason("timeout_seconds = %d must be >= 0", a.TimeoutSeconds)
	}
	return nil
}

// SeriesPolicy for time series downloads.
func (a *AlphaVantage) SeriesPolicy() ratelimit.Policy {
	return ratelimit.Policy{
		MaxCalls: a.Calls,
		Window:   time.Duration(a.WindowSeconds) * time.Second,
	}
}

// SearchPolicy for symbol search.
func (a *AlphaVantage) SearchPolicy() ratelimit.Policy {
	return ratelimit.Policy{
		MaxCalls: a.SearchCalls,
		Window:   time.Duration(a.SearchWindowSeconds) * time.Second,
	}
}

// Timeout of a single HTTP request.
func (a *AlphaVantage) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Config is the whole configuration file.
type Config struct {
	AlphaVantage AlphaVantage `json:"alphavantage" required:"true"`
}

var _ Section = &Config{}

// InitSection implements Section.
func (c *Config) InitSection(js any) error {
	return Init(c, js)
}

// Parse the TOML configuration from r.
func Parse(r io.Reader) (*Config, error) {
	var js map[string]any
	if err := toml.NewDecoder(r).Decode(&js); err != nil {
		return nil, errors.Annotate(err, "failed to decode TOML")
	}
	if js == nil {
		js = map[string]any{}
	}
	var c Config
	if err := c.InitSection(js); err != nil {
		return nil, errors.Annotate(err, "invalid configuration")
	}
	return &c, nil
}

// Load the configuration file from the directory.
func Load(dir string) (*Config, error) {
	filePath := filepath.Join(dir, FileName)
	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Annotate(err,
				"config file '%s' does not exist.\nPlease create config file containing:\n%s",
				filePath, Sample)
		}
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	return c, nil
}
