package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// The oracle does not always respect the requested types. These decode the
// common variations and leave Set false for null or a missing key.

type looseString struct {
	Value string
	Set   bool
}

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		s.Value, s.Set = str, true
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		s.Value, s.Set = num.String(), true
		return nil
	}
	return fmt.Errorf("expected string, got %s", b)
}

type looseFloat struct {
	Value float64
	Set   bool
}

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		f.Value, f.Set = v, true
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("expected number, got %s", b)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("expected number, got %q", str)
	}
	f.Value, f.Set = v, true
	return nil
}

// looseCount is a reported count. Anything that is not a finite number or
// numeric string decodes as zero, and values saturate at math.MaxInt32 so
// they fit an INTEGER column.
type looseCount struct {
	Value int
	Set   bool
}

func (c *looseCount) UnmarshalJSON(b []byte) error {
	var f looseFloat
	if err := f.UnmarshalJSON(b); err != nil || !f.Set {
		return nil
	}
	c.Value, c.Set = clampCount(f.Value), true
	return nil
}

func clampCount(v float64) int {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	}
	return int(v)
}

// looseStrings accepts an array of strings or a single string.
type looseStrings []string

func (s *looseStrings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = nil
		return nil
	}
	var items []looseString
	if err := json.Unmarshal(b, &items); err == nil {
		out := make([]string, 0, len(items))
		for _, item := range items {
			if item.Set {
				out = append(out, item.Value)
			}
		}
		*s = out
		return nil
	}
	var one looseString
	if err := json.Unmarshal(b, &one); err != nil {
		return fmt.Errorf("expected string list, got %s", b)
	}
	*s = []string{one.Value}
	return nil
}

// joinedText accepts a string or an array of strings joined into one paragraph.
type joinedText struct {
	Value string
	Set   bool
}

func (t *joinedText) UnmarshalJSON(b []byte) error {
	var parts looseStrings
	if err := parts.UnmarshalJSON(b); err != nil {
		return err
	}
	if parts == nil {
		return nil
	}
	t.Value, t.Set = strings.Join(parts, " "), true
	return nil
}
