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

package config

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/exp/slices"

	"github.com/stockparfait/errors"
)

// Section is a node of a configuration tree decoded into generic values, as
// produced by TOML or JSON decoders into map[string]any. It is implemented by
// struct pointers, e.g.:
//
//	type Provider struct {
//	  Key     string   `json:"accesskey" required:"true"`
//	  Calls   int      `json:"calls" default:"5"`
//	  Mode    string   `json:"mode" default:"csv" choices:"csv,json"`
//	  Aliases []string `json:"aliases" default:"a,b"` // comma-separated default
//	  Limits  *Limits  `json:"limits"` // nested Section
//	}
//
//	func (p *Provider) InitSection(js any) error {
//	  return config.Init(p, js)
//	}
type Section interface {
	// InitSection checks required fields, sets defaults of the missing ones and
	// rejects unknown keys. Nested Sections are initialized recursively.
	InitSection(js any) error
}

var rSection = reflect.TypeOf((*Section)(nil)).Elem()

func initSection(jv any, t reflect.Type) (reflect.Value, error) {
	var Nil reflect.Value
	if t.Kind() != reflect.Ptr {
		return Nil, errors.Reason("type %s implements Section but is not a pointer", t.Name())
	}
	ptr := reflect.New(t.Elem())
	if err := ptr.Interface().(Section).InitSection(jv); err != nil {
		return Nil, errors.Annotate(err, "%s.InitSection() failed", t.Elem().Name())
	}
	return ptr, nil
}

// number extracts a numeric value decoded by either TOML (int64, float64) or
// JSON (float64).
func number(jv any) (float64, bool) {
	switch v := jv.(type) {
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// convert recursively converts a decoded value to the type t. A nil jv yields
// the zero value, or the default-initialized Section.
func convert(jv any, t reflect.Type) (reflect.Value, error) {
	var Nil reflect.Value
	if t.Implements(rSection) {
		if jv == nil {
			return reflect.Zero(t), nil
		}
		return initSection(jv, t)
	}
	if pt := reflect.PtrTo(t); pt.Implements(rSection) {
		if jv == nil {
			jv = map[string]any{}
		}
		ptr, err := initSection(jv, pt)
		if err != nil {
			return Nil, err
		}
		return ptr.Elem(), nil
	}
	if jv == nil {
		return reflect.Zero(t), nil
	}
	switch t.Kind() {
	case reflect.Ptr:
		v, err := convert(jv, t.Elem())
		if err != nil {
			return Nil, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(v)
		return ptr, nil
	case reflect.Bool:
		b, ok := jv.(bool)
		if !ok {
			return Nil, errors.Reason("not a bool: %v", jv)
		}
		return reflect.ValueOf(b), nil
	case reflect.Int, reflect.Int64:
		n, ok := number(jv)
		if !ok {
			return Nil, errors.Reason("not a number: %v", jv)
		}
		if n != float64(int64(n)) {
			return Nil, errors.Reason("not an integer: %v", jv)
		}
		return reflect.ValueOf(int64(n)).Convert(t), nil
	case reflect.Float64:
		n, ok := number(jv)
		if !ok {
			return Nil, errors.Reason("not a number: %v", jv)
		}
		return reflect.ValueOf(n), nil
	case reflect.String:
		s, ok := jv.(string)
		if !ok {
			return Nil, errors.Reason("not a string: %v", jv)
		}
		return reflect.ValueOf(s).Convert(t), nil
	case reflect.Slice:
		l, ok := jv.([]any)
		if !ok {
			return Nil, errors.Reason("not a list: %v", jv)
		}
		res := reflect.MakeSlice(t, len(l), len(l))
		for i, x := range l {
			el, err := convert(x, t.Elem())
			if err != nil {
				return Nil, errors.Annotate(err, "element [%d]", i)
			}
			res.Index(i).Set(el)
		}
		return res, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return Nil, errors.Reason("map[%s] is not supported", t.Key().Kind())
		}
		m, ok := jv.(map[string]any)
		if !ok {
			return Nil, errors.Reason("not a map: %v", jv)
		}
		res := reflect.MakeMap(t)
		for k, x := range m {
			el, err := convert(x, t.Elem())
			if err != nil {
				return Nil, errors.Annotate(err, "key '%s'", k)
			}
			res.SetMapIndex(reflect.ValueOf(k), el)
		}
		return res, nil
	}
	return Nil, errors.Reason("unsupported type: %s", t)
}

// fromTag converts a default tag value to the type t. Slices of basic types
// are comma-separated.
func fromTag(s string, t reflect.Type) (reflect.Value, error) {
	var Nil reflect.Value
	switch t.Kind() {
	case reflect.Ptr:
		v, err := fromTag(s, t.Elem())
		if err != nil {
			return Nil, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(v)
		return ptr, nil
	case reflect.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return Nil, errors.Annotate(err, "invalid bool: %s", s)
		}
		return reflect.ValueOf(v), nil
	case reflect.Int, reflect.Int64:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Nil, errors.Annotate(err, "invalid int: %s", s)
		}
		return reflect.ValueOf(v).Convert(t), nil
	case reflect.Float64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Nil, errors.Annotate(err, "invalid float64: %s", s)
		}
		return reflect.ValueOf(v), nil
	case reflect.String:
		return reflect.ValueOf(s).Convert(t), nil
	case reflect.Slice:
		parts := strings.Split(s, ",")
		res := reflect.MakeSlice(t, len(parts), len(parts))
		for i, p := range parts {
			el, err := fromTag(strings.TrimSpace(p), t.Elem())
			if err != nil {
				return Nil, err
			}
			res.Index(i).Set(el)
		}
		return res, nil
	}
	return Nil, errors.Reason("type %s cannot have a default", t)
}

func checkSet(f reflect.StructField, fv, v reflect.Value) error {
	if choices, ok := f.Tag.Lookup("choices"); ok {
		if f.Type.Kind() != reflect.String {
			return errors.Reason("choices tag on a non-string field %s", f.Name)
		}
		s := v.String()
		if !slices.Contains(strings.Split(choices, ","), s) {
			return errors.Reason("%s = '%s' is not one of [%s]", f.Name, s, choices)
		}
	}
	fv.Set(v)
	return nil
}

// Init populates the struct pointed to by s from js, which must be a
// map[string]any. Recognized struct tags:
//
//	`json:"key" required:"true" default:"value" choices:"one,two"`
//
// A missing json tag means the field name is the key. Unexported fields and
// `json:"-"` are skipped. Unknown keys in js are an error.
func Init(s Section, js any) error {
	rt := reflect.TypeOf(s)
	if !(rt.Kind() == reflect.Ptr && rt.Elem().Kind() == reflect.Struct) {
		return errors.Reason("expected a struct pointer, got %s", rt)
	}
	m, ok := js.(map[string]any)
	if !ok {
		return errors.Reason("expected a map, got %v", js)
	}
	rt = rt.Elem()
	rv := reflect.ValueOf(s).Elem()
	found := make(map[string]bool)
	var missing []string
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if r, _ := utf8.DecodeRuneInString(f.Name); !unicode.IsUpper(r) {
			continue
		}
		key := f.Name
		if tag := f.Tag.Get("json"); tag != "" {
			name := strings.Split(tag, ",")[0]
			if name == "-" {
				continue
			}
			if name != "" {
				key = name
			}
		}
		fv := rv.Field(i)
		if jv, ok := m[key]; ok {
			found[key] = true
			v, err := convert(jv, f.Type)
			if err != nil {
				return errors.Annotate(err, "field %s", key)
			}
			if err := checkSet(f, fv, v); err != nil {
				return err
			}
			continue
		}
		if f.Tag.Get("required") == "true" {
			missing = append(missing, key)
			continue
		}
		var v reflect.Value
		var err error
		if d, ok := f.Tag.Lookup("default"); ok {
			v, err = fromTag(d, f.Type)
		} else {
			v, err = convert(nil, f.Type)
		}
		if err != nil {
			return errors.Annotate(err, "default for %s", key)
		}
		if err := checkSet(f, fv, v); err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		return errors.Reason("missing required fields: %s", strings.Join(missing, ", "))
	}
	var extra []string
	for k := range m {
		if !found[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return errors.Reason("unsupported fields for %s: %s",
			rt.Name(), strings.Join(extra, ", "))
	}
	return nil
}
