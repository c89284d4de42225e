// Package locale holds the fixed label dictionaries and number formatting
// used by the dashboard. Lookups never fail: unknown codes map to Unknown.
package locale

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Unknown is the label for a categorical code missing from the dictionary
const Unknown = "unknown"

// Locale is an immutable set of labels for one display language.
type Locale struct {
	tag      language.Tag
	seasons  [4]string
	weekdays [7]string
	months   [12]string
	printer  *message.Printer
}

var (
	// English is the default locale
	English = newLocale(language.English,
		[4]string{"Spring", "Summer", "Fall", "Winter"},
		[7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
		[12]string{"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December"},
	)

	// Indonesian matches the labels of the original dashboard audience
	Indonesian = newLocale(language.Indonesian,
		[4]string{"Musim Semi", "Musim Panas", "Musim Gugur", "Musim Dingin"},
		[7]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"},
		[12]string{"Januari", "Februari", "Maret", "April", "Mei", "Juni",
			"Juli", "Agustus", "September", "Oktober", "November", "Desember"},
	)

	supported = []*Locale{English, Indonesian}
	matcher   = language.NewMatcher([]language.Tag{language.English, language.Indonesian})
)

func newLocale(tag language.Tag, seasons [4]string, weekdays [7]string, months [12]string) *Locale {
	return &Locale{
		tag:      tag,
		seasons:  seasons,
		weekdays: weekdays,
		months:   months,
		printer:  message.NewPrinter(tag),
	}
}

// Parse resolves a BCP 47 tag such as "en", "en-GB" or "id" to a supported locale.
func Parse(code string) (*Locale, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return English, nil
	}

	tag, err := language.Parse(code)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", code, err)
	}

	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return nil, fmt.Errorf("unsupported locale %q", code)
	}
	return supported[idx], nil
}

// MustParse is like Parse but panics on error
func MustParse(code string) *Locale {
	l, err := Parse(code)
	if err != nil {
		panic(err)
	}
	return l
}

// Code returns the base language code, e.g. "en"
func (l *Locale) Code() string {
	base, _ := l.tag.Base()
	return base.String()
}

// Tag returns the language tag
func (l *Locale) Tag() language.Tag {
	return l.tag
}

// SeasonName maps season codes 1..4 (Spring..Winter) to labels.
// The bool is false on a lookup miss, in which case the label is Unknown.
func (l *Locale) SeasonName(code int) (string, bool) {
	if code < 1 || code > len(l.seasons) {
		return Unknown, false
	}
	return l.seasons[code-1], true
}

// WeekdayName maps weekday codes 0..6 (Sunday..Saturday) to labels.
func (l *Locale) WeekdayName(code int) (string, bool) {
	if code < 0 || code >= len(l.weekdays) {
		return Unknown, false
	}
	return l.weekdays[code], true
}

// MonthName returns the full month name
func (l *Locale) MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return Unknown
	}
	return l.months[m-1]
}

// Weekdays returns the weekday labels in code order
func (l *Locale) Weekdays() []string {
	out := make([]string, len(l.weekdays))
	copy(out, l.weekdays[:])
	return out
}

// FormatCount formats n with the locale's digit grouping, e.g. 1,234,567
func (l *Locale) FormatCount(n int64) string {
	return l.printer.Sprintf("%d", n)
}

// FormatDecimal formats f with two fraction digits and locale separators
func (l *Locale) FormatDecimal(f float64) string {
	return l.printer.Sprintf("%.2f", f)
}

// FormatHour renders an hour of day as H:00
func FormatHour(h int) string {
	return fmt.Sprintf("%d:00", h)
}
