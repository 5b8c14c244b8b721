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

// Package fault defines the kinds of failures of the quote download pipeline.
//
// Every error that terminates a pipeline run has a *Error with a Kind in its
// chain, so the caller can tell a bad request from a network failure or from
// the provider's in-band quota message. Context is added with
// errors.Annotate, which keeps the kind and the body reachable:
//
//   if errors.Is(err, fault.QuotaExceeded) {
//     // back off, fault.BodyOf(err) has the provider's message
//   }
package fault

import (
	"fmt"
	"strings"
)

// Kind of a failure. Kind implements error so it can be used as a target of
// errors.Is.
type Kind int

const (
	Unknown           Kind = iota
	InvalidInput           // bad symbol, interval or history depth; no I/O done
	Network                // transport or HTTP status failure
	QuotaExceeded          // provider's call frequency message in a 200 response
	MalformedResponse      // response is not a well-formed table
	Schema                 // table is well-formed but a column or a cell is invalid
	Storage                // failed to write or read a stored chunk
)

var kindNames = map[Kind]string{
	Unknown:           "unknown",
	InvalidInput:      "invalid input",
	Network:           "network error",
	QuotaExceeded:     "API call frequency exceeded",
	MalformedResponse: "malformed response",
	Schema:            "schema error",
	Storage:           "storage error",
}

// String representation of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error implements error.
func (k Kind) Error() string { return k.String() }

// Error is a classified failure.
type Error struct {
	Kind  Kind
	Msg   string
	Body  string // the raw response text, when relevant
	Cause error
}

var _ error = &Error{}

// New creates an Error of the given kind with a formatted message.
func New(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. The cause is kept for Unwrap.
func Wrap(k Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...), Cause: err}
}

// WithBody attaches the raw response text and returns the same Error.
func (e *Error) WithBody(body string) *Error {
	e.Body = body
	return e
}

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	if e.Body != "" {
		b.WriteString("\nresponse:\n")
		b.WriteString(e.Body)
	}
	return b.String()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches a Kind target, or another *Error of the same kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

// find returns the outermost *Error in the unwrap chain, or nil.
func find(err error) *Error {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}

// KindOf returns the kind of the outermost *Error in the chain, or Unknown.
func KindOf(err error) Kind {
	if e := find(err); e != nil {
		return e.Kind
	}
	return Unknown
}

// BodyOf returns the response body attached to the outermost *Error, if any.
func BodyOf(err error) string {
	if e := find(err); e != nil {
		return e.Body
	}
	return ""
}

// Is reports whether the outermost classified error in err's chain is of kind
// k.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
