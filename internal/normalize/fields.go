package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"

	"github.com/TobiSchelling/habrpipe/internal/article"
)

// PreviewLimit is the maximum preview length in characters.
const PreviewLimit = 500

// ParseCount converts a scraped counter such as "1.2K", "+15" or "1 234" to
// an integer. Absent or unreadable values become 0.
func ParseCount(s *string) int64 {
	if s == nil {
		return 0
	}
	n, _ := parseCountText(*s)
	return n
}

// parseCountText reports ok=false when non-empty input could not be read
// and was replaced by 0.
func parseCountText(s string) (int64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "0" {
		return 0, true
	}

	for _, suffix := range []string{"k", "к"} {
		if rest, found := strings.CutSuffix(s, suffix); found {
			return parseThousands(rest)
		}
	}

	var digits strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case (r == '-' || r == '−') && digits.Len() == 0:
			digits.Reset()
			digits.WriteByte('-')
		}
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseThousands(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// Round away float noise (4.1*1000 = 4099.999...) before truncating.
	v := math.Trunc(math.Round(f*1000*1e6) / 1e6)
	if math.IsInf(v, 0) || v < math.MinInt64 || v >= math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

// Text trims s and collapses every whitespace run to a single space.
func Text(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// OptionalText is Text for an optional field; absent becomes "".
func OptionalText(s *string) string {
	if s == nil {
		return ""
	}
	return Text(*s)
}

// Truncate cuts s to at most limit characters without adding a marker.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

// Author strips the leading "@" of a username.
func Author(s *string) string {
	return strings.TrimSpace(strings.TrimPrefix(OptionalText(s), "@"))
}

// Date parses s with a permissive date-time parser and formats it in UTC.
// Zone-less input is taken as UTC. Unreadable input yields "".
func Date(s *string) string {
	if s == nil {
		return ""
	}
	text := strings.TrimSpace(*s)
	if text == "" || !strings.ContainsFunc(text, unicode.IsDigit) {
		return ""
	}
	t, err := dateparse.ParseIn(text, time.UTC)
	if err != nil {
		return ""
	}
	return article.FormatTime(t)
}
