package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var months = map[string]time.Month{
	"januari": time.January, "january": time.January, "jan": time.January,
	"februari": time.February, "february": time.February, "feb": time.February,
	"mars": time.March, "march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"maj": time.May, "may": time.May,
	"juni": time.June, "june": time.June, "jun": time.June,
	"juli": time.July, "july": time.July, "jul": time.July,
	"augusti": time.August, "august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"oktober": time.October, "october": time.October, "okt": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var (
	// "innan 5 december", "till den 12 mars", "by the 3rd of May"
	dayMonthPattern = regexp.MustCompile(`(?i)(?:innan|till|senast|före|by|before|until)\s+(?:den\s+|the\s+)?(\d{1,2})(?:e|a|st|nd|rd|th)?\s+(?:of\s+)?([a-zåäö]+)`)
	// "by December 5"
	monthDayPattern = regexp.MustCompile(`(?i)(?:by|before|until)\s+([a-z]+)\s+(\d{1,2})(?:st|nd|rd|th)?`)
)

// parseDueDate finds a "before <day> <month>" deadline in text. The year is the
// first one that puts the date on or after ref. Unparsable dates yield nil.
func parseDueDate(text string, ref time.Time) *time.Time {
	if m := dayMonthPattern.FindStringSubmatch(text); m != nil {
		if due := resolveDate(m[1], m[2], ref); due != nil {
			return due
		}
	}
	if m := monthDayPattern.FindStringSubmatch(text); m != nil {
		return resolveDate(m[2], m[1], ref)
	}
	return nil
}

func resolveDate(dayText, monthText string, ref time.Time) *time.Time {
	day, err := strconv.Atoi(dayText)
	if err != nil || day < 1 || day > 31 {
		return nil
	}
	month, ok := months[strings.ToLower(monthText)]
	if !ok {
		return nil
	}

	ref = ref.UTC()
	today := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	for year := ref.Year(); year <= ref.Year()+1; year++ {
		due := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if due.Day() != day {
			// 31 april and friends normalise into the next month
			continue
		}
		if !due.Before(today) {
			return &due
		}
	}
	return nil
}
