package grid

import (
	"strings"

	"github.com/spf13/cast"
)

// AllowList restricts extraction to the listed names or coordinate values.
// A nil list allows everything.
type AllowList []string

// ParseAllowList builds an AllowList from configuration items. No items, or
// the single item "all", yields the nil list.
func ParseAllowList(items []string) AllowList {
	var l AllowList
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		l = append(l, item)
	}
	if len(l) == 1 && strings.EqualFold(l[0], "all") {
		return nil
	}
	return l
}

// All reports whether the list allows everything.
func (l AllowList) All() bool {
	return l == nil
}

// Allows reports whether v is in the list. Numeric values match by value, so
// "62000" allows a level printed as "62000.0".
func (l AllowList) Allows(v string) bool {
	if l == nil {
		return true
	}
	fv, numErr := cast.ToFloat64E(v)
	for _, item := range l {
		if item == v {
			return true
		}
		if numErr != nil {
			continue
		}
		if fi, err := cast.ToFloat64E(item); err == nil && fi == fv {
			return true
		}
	}
	return false
}
