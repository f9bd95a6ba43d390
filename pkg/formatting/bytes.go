// Package formatting parses and renders human-readable byte sizes.
package formatting

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

var bytesPattern = regexp.MustCompile(`^(\d+\.?\d*)\s*([A-Za-z]*)$`)

// Bytes is a byte count that reads and writes as a human-readable size
// ("1MB", "512 KB") in TOML and JSON configuration.
type Bytes int64

// String renders b with base-1024 units and up to one decimal place.
func (b Bytes) String() string {
	return FormatBytes(int64(b), 1)
}

func (b Bytes) MarshalText() ([]byte, error) {
	return []byte(FormatBytes(int64(b), 0)), nil
}

func (b *Bytes) UnmarshalText(text []byte) error {
	n, err := ParseBytes(string(text))
	if err != nil {
		return err
	}
	*b = Bytes(n)
	return nil
}

// FormatBytes converts n to a base-1024 string. Trailing ".0" is dropped.
func FormatBytes(n int64, precision int) string {
	if n <= 0 {
		return "0 B"
	}
	precision = max(precision, 0)

	f := float64(n)
	i := min(int(math.Floor(math.Log(f)/math.Log(1024))), len(units)-1)

	size := strconv.FormatFloat(f/math.Pow(1024, float64(i)), 'f', precision, 64)
	if strings.Contains(size, ".") {
		size = strings.TrimRight(strings.TrimRight(size, "0"), ".")
	}
	return size + " " + units[i]
}

// ParseBytes parses sizes such as "50MB", "1.5 kb" or "2048". A bare number is bytes.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	m := bytesPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	unit := strings.ToUpper(m[2])
	if unit == "" {
		return int64(value), nil
	}

	idx := slices.Index(units, unit)
	if idx == -1 {
		return 0, fmt.Errorf("unknown byte size unit: %q", m[2])
	}
	return int64(value * math.Pow(1024, float64(idx))), nil
}
