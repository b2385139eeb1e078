package validator

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Number holds a request field that may arrive as a JSON number or as a
// numeric string (form posts). It keeps the raw text; validation sees the
// parsed float64 when the text is a finite number and the raw string
// otherwise, so tags such as "required,numeric,gte=0" apply to it directly.
type Number struct {
	raw     string
	present bool
}

// NewNumber returns a Number holding raw as if it had been decoded.
func NewNumber(raw string) Number {
	raw = strings.TrimSpace(raw)
	return Number{raw: raw, present: raw != ""}
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NewNumber(s)
		return nil
	}
	*n = NewNumber(string(data))
	return nil
}

// Float returns the parsed value. ok is false when the field was absent or
// is not a finite number.
func (n Number) Float() (f float64, ok bool) {
	if !n.present {
		return 0, false
	}
	f, err := strconv.ParseFloat(n.raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// numberValue is the custom type func registered for Number. Parsed values
// are returned behind a pointer so "required" accepts zero.
func numberValue(v reflect.Value) any {
	n, ok := v.Interface().(Number)
	if !ok || !n.present {
		return nil
	}
	if f, ok := n.Float(); ok {
		return &f
	}
	return n.raw
}
