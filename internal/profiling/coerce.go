package profiling

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var missingTokens = map[string]struct{}{
	"na":   {},
	"n/a":  {},
	"null": {},
	"nan":  {},
}

var currencySymbols = []string{"$", "€", "£", "¥", "USD", "EUR", "GBP", "JPY"}

// IsMissing reports whether a raw cell counts as a missing observation
func IsMissing(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return true
		}
		_, ok := missingTokens[strings.ToLower(s)]
		return ok
	}
	return false
}

// ParseNumber converts a raw cell to a float. Go numeric types pass through;
// strings may carry currency symbols, percent signs, thousands separators,
// European decimal commas and accounting negatives such as "(12.50)".
func ParseNumber(v interface{}) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case string:
		return parseNumericString(x)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumericString(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
		negative = true
	}
	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, false
	}

	hasComma := strings.Contains(s, ",")
	hasPeriod := strings.Contains(s, ".")
	hasSpace := strings.Contains(s, " ")

	switch {
	case hasComma && (hasPeriod || hasSpace):
		// 1.234,56 or 1 234,56 when the comma comes last
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.NewReplacer(".", "", " ", "", ",", ".").Replace(s)
		} else {
			s = strings.NewReplacer(",", "", " ", "").Replace(s)
		}
	case hasComma:
		if thousandsGrouped(s) {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	default:
		s = strings.ReplaceAll(s, " ", "")
	}

	if negative {
		s = "-" + s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// thousandsGrouped reports whether every comma-separated group after the first has three digits
func thousandsGrouped(s string) bool {
	parts := strings.Split(strings.TrimPrefix(s, "-"), ",")
	if len(parts) < 2 || len(parts[0]) == 0 || len(parts[0]) > 3 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

// label renders a non-missing cell as the string used for unique counts and top values
func label(v interface{}) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
