package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexID is an identifier the backend delivers inconsistently as either a
// JSON string or a JSON number. It always normalizes to its string form so
// identity comparisons never depend on the wire type.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*f = ""
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*f = FlexID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	// Integer ids must not pick up a float representation.
	if i, err := n.Int64(); err == nil {
		*f = FlexID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string {
	return string(f)
}

// NormalizeID canonicalizes an identifier for comparison: trimmed string
// form, regardless of whether the source was a number or a string.
func NormalizeID(s string) string {
	return strings.TrimSpace(s)
}

// SameID reports whether two identifiers refer to the same entity under
// string-normalized comparison. Empty ids never match anything.
func SameID(a, b string) bool {
	na, nb := NormalizeID(a), NormalizeID(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}
