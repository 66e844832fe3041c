package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"therapy_notes_generator/internal/domain/calendar"
	"therapy_notes_generator/internal/domain/group"

	"gopkg.in/yaml.v3"
)

//go:embed tracks.yaml
var defaultTracksYAML []byte

type tracksFile struct {
	Tracks []trackEntry `yaml:"tracks"`
}

type trackEntry struct {
	Program        string            `yaml:"program"`
	DoubleNoteDay  string            `yaml:"double_note_day"`
	AlternateCode  string            `yaml:"alternate_code"`
	HyphenateCodes bool              `yaml:"hyphenate_codes"`
	Codes          map[string]string `yaml:"codes"`
}

// LoadTracks reads program tracks from path, or the built-in definitions when path is empty.
func LoadTracks(path string) (group.Tracks, error) {
	raw := defaultTracksYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read tracks config %s: %w", path, err)
		}
		raw = b
	}
	return ParseTracks(raw)
}

// ParseTracks decodes track definitions. Every track needs a double-note day, an alternate code
// and a code for each working day.
func ParseTracks(raw []byte) (group.Tracks, error) {
	var file tracksFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tracks config: %w", err)
	}
	if len(file.Tracks) == 0 {
		return nil, fmt.Errorf("tracks config defines no tracks")
	}

	tracks := make(group.Tracks, len(file.Tracks))
	for _, e := range file.Tracks {
		program := group.Program(strings.ToUpper(strings.TrimSpace(e.Program)))
		if program == "" {
			return nil, fmt.Errorf("track without program")
		}
		if _, dup := tracks[program]; dup {
			return nil, fmt.Errorf("track %s defined twice", program)
		}

		day, err := calendar.ParseWeekday(e.DoubleNoteDay)
		if err != nil {
			return nil, fmt.Errorf("track %s: double_note_day: %w", program, err)
		}
		if strings.TrimSpace(e.AlternateCode) == "" {
			return nil, fmt.Errorf("track %s: alternate_code is required", program)
		}

		t := group.Track{
			Program:        program,
			DoubleNoteDay:  day,
			AlternateCode:  strings.TrimSpace(e.AlternateCode),
			HyphenateCodes: e.HyphenateCodes,
			Codes:          make(map[time.Weekday]string, len(e.Codes)),
		}
		for name, code := range e.Codes {
			wd, err := calendar.ParseWeekday(name)
			if err != nil {
				return nil, fmt.Errorf("track %s: codes: %w", program, err)
			}
			t.Codes[wd] = strings.TrimSpace(code)
		}
		for _, wd := range calendar.WorkDays {
			if t.Codes[wd] == "" {
				return nil, fmt.Errorf("track %s: no billing code for %s", program, wd)
			}
		}
		tracks[program] = t
	}
	return tracks, nil
}
