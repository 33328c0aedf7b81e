package native

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Significant digits ncdump prints for float and double values.
const (
	floatDigits  = 7
	doubleDigits = 15
)

// FillMarker replaces values equal to a variable's fill value.
const FillMarker = "_"

// defaultFills are the netCDF default fill values of variables without a
// _FillValue attribute, rendered as data.
var defaultFills = map[string]string{
	"byte":   "-127",
	"short":  "-32767",
	"int":    "-2147483647",
	"int64":  "-9223372036854775806",
	"ubyte":  "255",
	"ushort": "65535",
	"uint":   "4294967295",
	"uint64": "18446744073709551614",
	"float":  formatFloat(float64(float32(9.9692099683868690e+36)), floatDigits, "f"),
	"double": formatFloat(9.9692099683868690e+36, doubleDigits, ""),
}

// flatten appends the scalars of a possibly nested slice to out, formatted
// the way ncdump prints data.
func flatten(v any, out []string) []string {
	switch s := v.(type) {
	case []float32:
		return appendFloats(out, s, floatDigits, "f")
	case []float64:
		return appendFloats(out, s, doubleDigits, "")
	case []int8:
		return appendInts(out, s)
	case []int16:
		return appendInts(out, s)
	case []int32:
		return appendInts(out, s)
	case []int64:
		return appendInts(out, s)
	case []uint8:
		return appendUints(out, s)
	case []uint16:
		return appendUints(out, s)
	case []uint32:
		return appendUints(out, s)
	case []uint64:
		return appendUints(out, s)
	case string:
		return append(out, strconv.Quote(s))
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		for i := 0; i < rv.Len(); i++ {
			out = flatten(rv.Index(i).Interface(), out)
		}
		return out
	}
	return append(out, formatScalar(v))
}

func appendFloats[T float32 | float64](out []string, s []T, digits int, nonFinite string) []string {
	for _, x := range s {
		out = append(out, formatFloat(float64(x), digits, nonFinite))
	}
	return out
}

func appendInts[T int8 | int16 | int32 | int64](out []string, s []T) []string {
	for _, x := range s {
		out = append(out, strconv.FormatInt(int64(x), 10))
	}
	return out
}

func appendUints[T uint8 | uint16 | uint32 | uint64](out []string, s []T) []string {
	for _, x := range s {
		out = append(out, strconv.FormatUint(uint64(x), 10))
	}
	return out
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case float32:
		return formatFloat(float64(x), floatDigits, "f")
	case float64:
		return formatFloat(x, doubleDigits, "")
	}
	return fmt.Sprint(v)
}

// formatFloat renders x like C's %.<digits>g. Non-finite values are spelled
// as in CDL, with suffix appended.
func formatFloat(x float64, digits int, suffix string) string {
	switch {
	case math.IsNaN(x):
		return "NaN" + suffix
	case math.IsInf(x, 1):
		return "Infinity" + suffix
	case math.IsInf(x, -1):
		return "-Infinity" + suffix
	}
	return strconv.FormatFloat(x, 'g', digits, 64)
}

// attrValues renders an attribute value the way ncdump prints attributes:
// floating point values always carry a decimal point and every numeric type
// other than int and double carries its CDL type suffix.
func attrValues(v any) []string {
	if s, ok := v.(string); ok {
		return []string{strconv.Quote(s)}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return []string{attrScalar(v)}
	}
	out := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, attrScalar(rv.Index(i).Interface()))
	}
	return out
}

func attrScalar(v any) string {
	switch x := v.(type) {
	case float32:
		return attrFloat(float64(x), floatDigits, "f")
	case float64:
		return attrFloat(x, doubleDigits, "")
	case int8:
		return strconv.FormatInt(int64(x), 10) + "b"
	case int16:
		return strconv.FormatInt(int64(x), 10) + "s"
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10) + "LL"
	case uint8:
		return strconv.FormatUint(uint64(x), 10) + "UB"
	case uint16:
		return strconv.FormatUint(uint64(x), 10) + "US"
	case uint32:
		return strconv.FormatUint(uint64(x), 10) + "U"
	case uint64:
		return strconv.FormatUint(x, 10) + "ULL"
	case string:
		return strconv.Quote(x)
	}
	return fmt.Sprint(v)
}

// attrFloat is %#.<digits>g with trailing zeros trimmed, so -9999 prints as
// "-9999." and 1e20 as "1.e+20".
func attrFloat(x float64, digits int, suffix string) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return formatFloat(x, digits, suffix)
	}
	s := strconv.FormatFloat(x, 'g', digits, 64)
	mant, exp, hasExp := strings.Cut(s, "e")
	if !strings.Contains(mant, ".") {
		mant += "."
	}
	if hasExp {
		return mant + "e" + exp + suffix
	}
	return mant + suffix
}

// markFill replaces every value equal to fill with FillMarker.
func markFill(values []string, fill string) []string {
	if fill == "" {
		return values
	}
	for i, v := range values {
		if v == fill {
			values[i] = FillMarker
		}
	}
	return values
}
