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

	"github.com/stockparfait/quotes/fault"
)

// Slice identifies one window of the extended intraday history, e.g.
// "year1month1". The mapping of slices to calendar months is defined by the
// provider; year1month1 is documented as the most recent 30 days.
type Slice string

// MaxHistoryMonths is the number of slices the provider serves.
const MaxHistoryMonths = 24

// AllSlices returns the canonical order of slices: year 1 months 1..12, then
// year 2 months 1..12.
func AllSlices() []Slice {
	res := make([]Slice, 0, MaxHistoryMonths)
	for year := 1; year <= 2; year++ {
		for month := 1; month <= 12; month++ {
			res = append(res, Slice(fmt.Sprintf("year%dmonth%d", year, month)))
		}
	}
	return res
}

// PlanSlices returns the first months slices of AllSlices. The depth must be
// in [1..MaxHistoryMonths].
func PlanSlices(months int) ([]Slice, error) {
	if months < 1 || months > MaxHistoryMonths {
		return nil, fault.New(fault.InvalidInput,
			"history depth %d months is outside [1..%d]", months, MaxHistoryMonths)
	}
	return AllSlices()[:months], nil
}
