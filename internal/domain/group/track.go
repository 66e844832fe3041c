package group

import (
	"fmt"
	"strings"
	"time"
)

var ErrUnknownProgram = fmt.Errorf("unknown program track")

// Track holds the billing and double-note rules of a program.
type Track struct {
	Program       Program
	DoubleNoteDay time.Weekday
	AlternateCode string
	// HyphenateCodes renders "G0410" as "G-0410".
	HyphenateCodes bool
	Codes          map[time.Weekday]string
}

// IsDoubleNoteDay reports whether two documents are produced per patient on day.
func (t Track) IsDoubleNoteDay(day time.Weekday) bool {
	return day == t.DoubleNoteDay
}

// CodeFor returns the formatted billing code of a regular note on day.
func (t Track) CodeFor(day time.Weekday) string {
	return t.format(t.Codes[day])
}

// Alternate returns the formatted billing code of the second note on a double-note day.
func (t Track) Alternate() string {
	return t.format(t.AlternateCode)
}

func (t Track) format(code string) string {
	code = strings.TrimSpace(code)
	if !t.HyphenateCodes || len(code) < 2 || strings.Contains(code, "-") {
		return code
	}
	return code[:1] + "-" + code[1:]
}

// Tracks maps each program to its rules.
type Tracks map[Program]Track

// Lookup returns the track of program p.
func (ts Tracks) Lookup(p Program) (Track, error) {
	t, ok := ts[p]
	if !ok {
		return Track{}, fmt.Errorf("%w: %q", ErrUnknownProgram, p)
	}
	return t, nil
}

// DefaultTracks returns the built-in PHP and IOP rules.
func DefaultTracks() Tracks {
	codes := map[time.Weekday]string{
		time.Monday:    "G0411",
		time.Tuesday:   "G0410",
		time.Wednesday: "G0411",
		time.Thursday:  "G0410",
		time.Friday:    "G0410",
	}
	copyCodes := func() map[time.Weekday]string {
		m := make(map[time.Weekday]string, len(codes))
		for k, v := range codes {
			m[k] = v
		}
		return m
	}
	return Tracks{
		ProgramPHP: {Program: ProgramPHP, DoubleNoteDay: time.Friday, AlternateCode: "G0411", Codes: copyCodes()},
		ProgramIOP: {Program: ProgramIOP, DoubleNoteDay: time.Thursday, AlternateCode: "G0411", HyphenateCodes: true, Codes: copyCodes()},
	}
}

// SelectedGoal is the treatment goal addressed by the notes of day: Monday..Thursday map to
// goals 1..4 and Friday returns to goal 1.
func SelectedGoal(day time.Weekday) int {
	switch day {
	case time.Tuesday:
		return 2
	case time.Wednesday:
		return 3
	case time.Thursday:
		return 4
	default:
		return 1
	}
}
