package catalog

import (
	"strconv"
	"strings"
)

// flexInt tolerates numbers that arrive as JSON strings, which the legacy
// provider does for years, durations and counters. Junk values collapse
// to zero instead of failing the whole record.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	*f = flexInt(parseFlex(data))
	return nil
}

type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	*f = flexInt64(parseFlex(data))
	return nil
}

func parseFlex(data []byte) int64 {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	// Some gateways emit large counters in scientific notation.
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(fl)
	}
	return 0
}
