package inventory

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	minutesRegex = regexp.MustCompile(`(\d+)\s*minutes?`)
	hoursRegex   = regexp.MustCompile(`(\d+)\s*hours?`)
	daysRegex    = regexp.MustCompile(`(\d+)\s*days?`)
	monthsRegex  = regexp.MustCompile(`(\d+)\s*months?`)
	yearsRegex   = regexp.MustCompile(`(\d+)\s*years?`)
)

// ParseRelativeDays converts the platform's relative claim labels
// ("23 minutes ago", "yesterday", "9 days ago", "last month",
// "2 months ago") into approximate whole days.
func ParseRelativeDays(s string) (int, bool) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return 0, false
	}
	if !strings.Contains(t, "ago") &&
		!strings.Contains(t, "yesterday") &&
		!strings.Contains(t, "last month") {
		return 0, false
	}

	if strings.Contains(t, "yesterday") {
		return 1, true
	}
	if minutesRegex.MatchString(t) || hoursRegex.MatchString(t) {
		return 0, true
	}
	if m := daysRegex.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	if strings.Contains(t, "last month") {
		return 30, true
	}
	if m := monthsRegex.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n * 30, true
	}
	if m := yearsRegex.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n * 365, true
	}
	return 0, false
}
