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
	"strings"
)

// Classification of a decoded response body.
type Classification int

const (
	ResponseOK        Classification = iota // looks like a table
	ResponseSoftQuota                       // the provider's quota message
	ResponseMalformed                       // anything else that is not a table
)

func (c Classification) String() string {
	switch c {
	case ResponseOK:
		return "ok"
	case ResponseSoftQuota:
		return "soft quota exceeded"
	case ResponseMalformed:
		return "malformed"
	}
	return "unknown"
}

// Classifier decides what kind of response the body text is before it is
// parsed as CSV.
type Classifier interface {
	Classify(text string) Classification
}

// DefaultSentinels are substrings of the provider's quota messages. The
// wording is not part of any documented contract and has changed before; when
// it changes again, detection silently degrades to ResponseMalformed.
var DefaultSentinels = []string{
	"Our standard API call frequency is",
	"standard API rate limit is",
	"higher API call frequency",
}

// SentinelClassifier recognizes quota messages by known substrings, and
// JSON objects (which the API returns for errors even when CSV is requested)
// as malformed.
type SentinelClassifier struct {
	Sentinels []string
}

var _ Classifier = &SentinelClassifier{}

// NewSentinelClassifier with DefaultSentinels.
func NewSentinelClassifier() *SentinelClassifier {
	return &SentinelClassifier{Sentinels: DefaultSentinels}
}

// Classify implements Classifier.
func (c *SentinelClassifier) Classify(text string) Classification {
	for _, s := range c.Sentinels {
		if s != "" && strings.Contains(text, s) {
			return ResponseSoftQuota
		}
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.HasPrefix(trimmed, "{") {
		return ResponseMalformed
	}
	return ResponseOK
}
