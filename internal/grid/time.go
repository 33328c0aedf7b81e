package grid

import (
	"path/filepath"
	"time"
)

// TimeLayout is the layout of granule timestamps.
const TimeLayout = "20060102T1504Z"

// GranuleTime derives the acquisition time of a granule from its file name,
// which must follow the AIRS.YYYY.MM.DD convention: the year, month and day
// are read from fixed offsets of the base name. Names that do not follow the
// convention give a meaningless value; see ValidTime.
func GranuleTime(filename string) string {
	base := filepath.Base(filename)
	return substr(base, 5, 4) + substr(base, 10, 2) + substr(base, 13, 2) + "T0000Z"
}

// ValidTime reports whether s is a well-formed granule timestamp.
func ValidTime(s string) bool {
	_, err := time.Parse(TimeLayout, s)
	return err == nil
}

func substr(s string, start, n int) string {
	if start >= len(s) {
		return ""
	}
	end := start + n
	if end > len(s) {
		end = len(s)
	}
	return s[start:end]
}
