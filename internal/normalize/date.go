// Package normalize converts the heterogeneous date strings found on job
// boards into absolute timestamps with a confidence tier.
//
// Sources mix absolute dates ("15/03/2024", "25 Déc. 2024"), relative phrases
// in French, English and Arabic ("il y a 2 jours", "3 days ago", "منذ 3 أيام"),
// and short tokens ("2j"), and frequently omit the date entirely. The
// normalizer tries each family in a fixed order and never fails: callers
// always get a timestamp usable for recency decisions, tagged with how much
// it should be trusted.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"jobradar/internal/posting"
)

var (
	boilerplateRe = regexp.MustCompile(`(?i)publiée sur \S+ le|publié(e)? le|posted|date\s*:|^du\s+`)
	clockSuffixRe = regexp.MustCompile(`\s+\d{1,2}:\d{2}.*$`)

	isoRe   = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	dmyRe   = regexp.MustCompile(`(\d{1,2})[./-](\d{1,2})[./-](\d{4})`)
	dmy2Re  = regexp.MustCompile(`(\d{1,2})[./-](\d{1,2})[./-](\d{2})$`)
	clockRe = regexp.MustCompile(`\d{1,2}:\d{2}`)

	hoursAgoRe   = regexp.MustCompile(`\d+\s*(h\b|heure|hour|minute|min\b|sec|دقيقة|ساعة|ساعات)`)
	daysAgoRe    = regexp.MustCompile(`(?:il y a\s*)?(\d+)\+?\s*(?:jour|day|يوم|أيام)`)
	shortRelRe   = regexp.MustCompile(`^(\d+)\s*[jd]$`)
	weeksAgoRe   = regexp.MustCompile(`(?:il y a\s*)?(\d+)\s*(?:semaine|week|أسبوع|أسابيع)`)
	monthsAgoRe  = regexp.MustCompile(`(?:il y a\s*)?(\d+)\s*(?:mois|month|شهر|أشهر)`)
	openEndedRe  = regexp.MustCompile(`(\d+)\+`)
	monthNameRe  = regexp.MustCompile(`(\d{1,2})\s+(\d{1,2})\s+(\d{4})`)
	nonDigitRe   = regexp.MustCompile(`[^\d\s]`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// frenchMonths maps French month names, including abbreviated and accented
// variants, to month numbers. English abbreviations that appear on bilingual
// boards are folded in.
var frenchMonths = []struct {
	name  string
	month int
}{
	{"janvier", 1}, {"janv.", 1}, {"janv", 1}, {"jan", 1},
	{"février", 2}, {"fevrier", 2}, {"fév.", 2}, {"fev.", 2}, {"fév", 2}, {"fev", 2}, {"feb", 2},
	{"mars", 3}, {"mar.", 3}, {"mar", 3},
	{"avril", 4}, {"avr.", 4}, {"avr", 4}, {"apr", 4},
	{"mai", 5}, {"may", 5},
	{"juin", 6}, {"jun", 6},
	{"juillet", 7}, {"juil.", 7}, {"juil", 7}, {"jul", 7},
	{"août", 8}, {"aout", 8}, {"aug", 8},
	{"septembre", 9}, {"sept.", 9}, {"sept", 9}, {"sep", 9},
	{"octobre", 10}, {"oct.", 10}, {"oct", 10},
	{"novembre", 11}, {"nov.", 11}, {"nov", 11},
	{"décembre", 12}, {"decembre", 12}, {"déc.", 12}, {"dec.", 12}, {"déc", 12}, {"dec", 12},
}

// Normalize resolves dateText against the reference instant. It never returns
// an error; on total failure the zero time is returned with TierUnresolved.
func Normalize(dateText string, ref time.Time) (time.Time, posting.DateTier) {
	return NormalizeWithFallback(dateText, ref, time.Time{}, false)
}

// NormalizeWithFallback behaves like Normalize but, when every parsing tier
// fails and the caller supplied a fallback estimate (typically derived from
// page position), returns the fallback tagged TierEstimated.
func NormalizeWithFallback(dateText string, ref time.Time, fallback time.Time, haveFallback bool) (time.Time, posting.DateTier) {
	s := clean(dateText)
	if s != "" {
		if ts, tier, ok := parse(s, ref); ok {
			return ts, tier
		}
	}
	if haveFallback {
		return fallback, posting.TierEstimated
	}
	return time.Time{}, posting.TierUnresolved
}

// EstimateFromPage derives a fallback timestamp from a page number, assuming
// newer postings appear on earlier pages. daysPerPage is a per-source tunable;
// the result is always TierEstimated and must never drive a confident stop.
func EstimateFromPage(page int, daysPerPage float64, ref time.Time) time.Time {
	if page < 1 {
		page = 1
	}
	offset := time.Duration(float64(page-1) * daysPerPage * float64(24*time.Hour))
	return ref.Add(-offset)
}

func clean(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = boilerplateRe.ReplaceAllString(s, "")
	// "Aujourd'hui 14:30" carries a clock time after the day word; the clock
	// part adds nothing and breaks the absolute-format parsers.
	if loc := clockSuffixRe.FindStringIndex(s); loc != nil && loc[0] > 0 {
		s = s[:loc[0]]
	}
	return strings.TrimSpace(s)
}

func parse(s string, ref time.Time) (time.Time, posting.DateTier, bool) {
	// 1. Absolute ISO-like pattern, including full timestamps.
	if m := isoRe.FindStringSubmatch(s); m != nil {
		if ts, ok := makeDate(m[3], m[2], m[1]); ok {
			return ts, posting.TierConfident, true
		}
	}

	// 2. Slash/dot/dash delimited day-first dates.
	if m := dmyRe.FindStringSubmatch(s); m != nil {
		if ts, ok := makeDate(m[1], m[2], m[3]); ok {
			return ts, posting.TierConfident, true
		}
	}

	// 3. Relative phrases. Word forms ("hier") are checked before the
	// hour/minute regex so that the bare "h" of "heure" cannot shadow them.
	if containsAny(s, "avant-hier", "before yesterday") {
		return ref.AddDate(0, 0, -2), posting.TierConfident, true
	}
	if containsAny(s, "hier", "yesterday", "أمس") {
		return ref.AddDate(0, 0, -1), posting.TierConfident, true
	}
	if containsAny(s, "aujourd", "today", "maintenant", "now", "اليوم") {
		return ref, posting.TierConfident, true
	}
	if hoursAgoRe.MatchString(s) || clockRe.MatchString(s) {
		return ref, posting.TierConfident, true
	}
	if m := daysAgoRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		ts := ref.AddDate(0, 0, -n)
		// "30+ jours" is a lower bound, not a date.
		if openEndedRe.MatchString(s) {
			return ts, posting.TierEstimated, true
		}
		return ts, posting.TierConfident, true
	}
	if m := weeksAgoRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return ref.AddDate(0, 0, -7*n), posting.TierConfident, true
	}
	if m := monthsAgoRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return ref.AddDate(0, 0, -30*n), posting.TierConfident, true
	}

	// 4. French month names combined with day/year digits.
	if ts, ok := parseMonthName(s); ok {
		return ts, posting.TierConfident, true
	}

	// 5. Short relative tokens ("2j", "3d"). Checked after month names so the
	// "d" of "déc" cannot be mistaken for a day unit.
	if m := shortRelRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return ref.AddDate(0, 0, -n), posting.TierConfident, true
	}

	// 6. Two-digit-year leftovers ("15-03-24").
	if m := dmy2Re.FindStringSubmatch(s); m != nil {
		if ts, ok := makeDate(m[1], m[2], "20"+m[3]); ok {
			return ts, posting.TierConfident, true
		}
	}

	return time.Time{}, posting.TierUnresolved, false
}

// parseMonthName handles "25 déc. 2024" style phrases by substituting the
// month name with its number and re-reading the digits.
func parseMonthName(s string) (time.Time, bool) {
	for _, fm := range frenchMonths {
		if !strings.Contains(s, fm.name) {
			continue
		}
		replaced := strings.Replace(s, fm.name, strconv.Itoa(fm.month), 1)
		cleaned := nonDigitRe.ReplaceAllString(replaced, " ")
		cleaned = strings.TrimSpace(multiSpaceRe.ReplaceAllString(cleaned, " "))
		m := monthNameRe.FindStringSubmatch(cleaned)
		if m == nil {
			return time.Time{}, false
		}
		return makeDate(m[1], m[2], m[3])
	}
	return time.Time{}, false
}

func makeDate(day, month, year string) (time.Time, bool) {
	d, _ := strconv.Atoi(day)
	m, _ := strconv.Atoi(month)
	y, _ := strconv.Atoi(year)
	if y < 2000 || y > 2100 || m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	ts := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 -> Mar 2); reject that.
	if ts.Day() != d || ts.Month() != time.Month(m) {
		return time.Time{}, false
	}
	return ts, true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
