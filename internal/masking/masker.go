// Package masking redacts sensitive substrings from text and nested
// JSON-shaped values before they leave the process.
package masking

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
)

// Token replaces every matched substring.
const Token = "[MASKED]"

// Masker applies an ordered list of regular expressions. A nil *Masker is a
// valid identity masker.
type Masker struct {
	patterns []*regexp.Regexp
}

// New compiles patterns in order. An invalid pattern is reported with its
// index so the offending configuration entry can be located.
func New(patterns []string) (*Masker, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for idx, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid masking regex at index %d: %s: %w", idx, p, err)
		}
		compiled = append(compiled, re)
	}
	return &Masker{patterns: compiled}, nil
}

// Enabled reports whether any pattern is configured.
func (m *Masker) Enabled() bool {
	return m != nil && len(m.patterns) > 0
}

// MaskText replaces matches of each pattern in turn. Later patterns see the
// output of earlier ones.
func (m *Masker) MaskText(s string) string {
	if !m.Enabled() || s == "" {
		return s
	}
	for _, re := range m.patterns {
		s = re.ReplaceAllLiteralString(s, Token)
	}
	return s
}

// MaskStrings masks each element of a slice and returns a new slice.
func (m *Masker) MaskStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = m.MaskText(s)
	}
	return out
}

// MaskObject returns a deep copy of v in which every string value is masked.
// Maps, slices, arrays and pointers of any element type are copied with their
// type kept. Values containing structs are converted to their JSON shape
// first. Other scalars are returned as is.
func (m *Masker) MaskObject(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return m.MaskText(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = m.MaskObject(val)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = m.MaskText(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = m.MaskObject(val)
		}
		return out
	case []string:
		return m.MaskStrings(t)
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, val := range t {
			out[i], _ = m.MaskObject(val).(map[string]any)
		}
		return out
	default:
		return m.maskOther(v)
	}
}

func (m *Masker) maskOther(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Map, reflect.Slice, reflect.Array, reflect.Pointer, reflect.Interface, reflect.Struct:
	default:
		return v
	}
	if containsStruct(rv.Type(), map[reflect.Type]bool{}) {
		return m.maskJSON(v)
	}
	return m.maskValue(rv).Interface()
}

// maskJSON masks the JSON form of v. Values that cannot be encoded are
// dropped rather than returned unmasked.
func (m *Masker) maskJSON(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var shaped any
	if err := json.Unmarshal(raw, &shaped); err != nil {
		return nil
	}
	return m.MaskObject(shaped)
}

// maskValue copies v, masking every string reachable from it. v must not
// contain structs.
func (m *Masker) maskValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.String:
		out := reflect.New(v.Type()).Elem()
		out.SetString(m.MaskText(v.String()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		return m.maskValue(v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(fit(m.maskValue(v.Elem()), v.Type().Elem()))
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), fit(m.maskValue(iter.Value()), v.Type().Elem()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(fit(m.maskValue(v.Index(i)), v.Type().Elem()))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(fit(m.maskValue(v.Index(i)), v.Type().Elem()))
		}
		return out
	default:
		return v
	}
}

// fit converts v for storage in a slot of type t. Interface slots holding a
// masked struct-free value always accept it; anything else becomes the zero
// value.
func fit(v reflect.Value, t reflect.Type) reflect.Value {
	if !v.IsValid() {
		return reflect.Zero(t)
	}
	if v.Type().AssignableTo(t) {
		return v
	}
	return reflect.Zero(t)
}

func containsStruct(t reflect.Type, seen map[reflect.Type]bool) bool {
	if seen[t] {
		return false
	}
	seen[t] = true
	switch t.Kind() {
	case reflect.Struct:
		return true
	case reflect.Map:
		return containsStruct(t.Key(), seen) || containsStruct(t.Elem(), seen)
	case reflect.Slice, reflect.Array, reflect.Pointer:
		return containsStruct(t.Elem(), seen)
	default:
		return false
	}
}

// MaskMap is MaskObject for the common map case.
func (m *Masker) MaskMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out, _ := m.MaskObject(in).(map[string]any)
	return out
}
