package formatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatNumber converts an integer to a string with commas as thousands separators.
// Example: 1234567 -> "1,234,567"
func FormatNumber(n int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		s = s[1:]
	}

	le := len(s)
	if le <= 3 {
		if n < 0 {
			return "-" + s
		}
		return s
	}

	sepCount := (le - 1) / 3

	res := make([]byte, le+sepCount)

	j := len(res) - 1
	for i := le - 1; i >= 0; i-- {
		res[j] = s[i]
		j--
		if (le-i)%3 == 0 && i > 0 {
			res[j] = ','
			j--
		}
	}

	if n < 0 {
		return "-" + string(res)
	}
	return string(res)
}

// FormatCompact renders like/comment counters the way feed overlays show them.
// Example: 999 -> "999", 1250 -> "1.2K", 3400000 -> "3.4M"
func FormatCompact(n int) string {
	abs := n
	sign := ""
	if n < 0 {
		abs = -n
		sign = "-"
	}

	var v float64
	var unit string
	switch {
	case abs >= 1_000_000_000:
		v, unit = float64(abs)/1_000_000_000, "B"
	case abs >= 1_000_000:
		v, unit = float64(abs)/1_000_000, "M"
	case abs >= 1_000:
		v, unit = float64(abs)/1_000, "K"
	default:
		return sign + strconv.Itoa(abs)
	}

	// Truncate rather than round so 1999 never reads as "2.0K".
	s := strconv.FormatFloat(float64(int(v*10))/10, 'f', 1, 64)
	s = strings.TrimSuffix(s, ".0")
	return sign + s + unit
}

// FormatClock renders a playback position as m:ss.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
