// Package format holds the presentation helpers shared by the HTTP views and
// the terminal client. Nothing here takes part in the state machines.
package format

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// Location is the zone timestamps are shown in. Colombia has no DST.
var Location = time.FixedZone("COT", -5*60*60)

var shortMonths = [...]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sep", "oct", "nov", "dic"}

const (
	unknownPhone = "Desconocido"
	defaultName  = "Usuario"
)

// Phone formats a raw numeric phone string. Colombian mobile numbers
// (57 + 10 digits) are grouped as +57 XXX XXX XXXX.
func Phone(raw string) string {
	if raw == "" {
		return unknownPhone
	}
	if strings.HasPrefix(raw, "57") && len(raw) >= 12 {
		return fmt.Sprintf("+57 %s %s %s", raw[2:5], raw[5:8], raw[8:])
	}
	return "+" + raw
}

// Timestamp renders t relative to now: a bare time for the last 24 hours,
// "Ayer" for the 24 before that, and a short date otherwise.
func Timestamp(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	local := t.In(Location)
	clock := local.Format("15:04")
	switch age := now.Sub(t); {
	case age < 24*time.Hour:
		return clock
	case age < 48*time.Hour:
		return "Ayer " + clock
	}
	return fmt.Sprintf("%02d %s %s", local.Day(), shortMonths[local.Month()-1], clock)
}

// Count formats n with Spanish thousands separators.
func Count(n int) string {
	return humanize.FormatInteger("#.###,", n)
}

// DisplayName prefers the member's name and falls back to the phone.
func DisplayName(name, phone string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return Phone(phone)
}

// HeaderName is the detail view title.
func HeaderName(name string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return defaultName
}

// Initial is the avatar letter for a session.
func Initial(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "U"
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r))
}
