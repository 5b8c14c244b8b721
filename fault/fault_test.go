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

package fault

import (
	"fmt"
	"testing"

	"github.com/stockparfait/errors"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFault(t *testing.T) {
	t.Parallel()

	Convey("Kinds print and match", t, func() {
		So(QuotaExceeded.String(), ShouldEqual, "API call frequency exceeded")
		So(Kind(42).String(), ShouldEqual, "kind(42)")

		err := New(Schema, "bad cell %d", 3)
		So(err.Error(), ShouldEqual, "schema error: bad cell 3")
		So(errors.Is(err, Schema), ShouldBeTrue)
		So(errors.Is(err, Storage), ShouldBeFalse)
		So(Is(err, Schema), ShouldBeTrue)
	})

	Convey("Wrap keeps the cause", t, func() {
		cause := fmt.Errorf("connection reset")
		err := Wrap(Network, cause, "GET %s", "/query")
		So(err.Error(), ShouldEqual, "network error: GET /query: connection reset")
		So(errors.Is(err, cause), ShouldBeTrue)
		So(KindOf(err), ShouldEqual, Network)
	})

	Convey("Annotated chains keep kind and body", t, func() {
		base := New(QuotaExceeded, "rejected").WithBody("Our standard API call frequency is 5")
		err := errors.Annotate(base, "slice %s", "year1month2")
		So(KindOf(err), ShouldEqual, QuotaExceeded)
		So(BodyOf(err), ShouldEqual, "Our standard API call frequency is 5")
		So(errors.Is(err, QuotaExceeded), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "slice year1month2")
		So(err.Error(), ShouldContainSubstring, "API call frequency exceeded: rejected")

		wrapped := fmt.Errorf("outer: %w", errors.Annotate(err, "run"))
		So(KindOf(wrapped), ShouldEqual, QuotaExceeded)
		So(Is(wrapped, QuotaExceeded), ShouldBeTrue)
	})

	Convey("Unclassified errors are Unknown", t, func() {
		err := errors.Annotate(fmt.Errorf("plain"), "context")
		So(KindOf(err), ShouldEqual, Unknown)
		So(KindOf(fmt.Errorf("plain")), ShouldEqual, Unknown)
		So(BodyOf(nil), ShouldEqual, "")
	})
}
