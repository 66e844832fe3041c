package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"therapy_notes_generator/internal/domain/group"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/notes")
	for _, k := range []string{"LOG_LEVEL", "ENVIRONMENT", "CRON_SPEC_WEEKLY_NOTES", "NOTES_BATCH_SIZE", "RUN_TIMEOUT", "GEMINI_TIMEOUT", "MANAGER_TELEGRAM_ID", "TELEGRAM_TOKEN", "AUTO_MIGRATE", "OUTPUT_DIR"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "info" || cfg.Environment != "development" {
		t.Errorf("log defaults = %q/%q", cfg.LogLevel, cfg.Environment)
	}
	if cfg.CronSpecWeekly != "0 18 * * 5" || cfg.NotesBatchSize != 15 || cfg.RunTimeout != 30*time.Minute {
		t.Errorf("run defaults = %q %d %s", cfg.CronSpecWeekly, cfg.NotesBatchSize, cfg.RunTimeout)
	}
	if cfg.OutputDir != "./output" || cfg.GeminiModel != "gemini-1.5-flash" || cfg.GeminiTimeout != 30*time.Second {
		t.Errorf("defaults = %q %q %s", cfg.OutputDir, cfg.GeminiModel, cfg.GeminiTimeout)
	}
	if cfg.ReportsEnabled() || cfg.AutoMigrate {
		t.Errorf("reports and migration must be off by default")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{key: "DATABASE_URL", value: ""},
		{key: "NOTES_BATCH_SIZE", value: "0"},
		{key: "NOTES_BATCH_SIZE", value: "many"},
		{key: "RUN_TIMEOUT", value: "soon"},
		{key: "GEMINI_TIMEOUT", value: "-1s"},
		{key: "MANAGER_TELEGRAM_ID", value: "abc"},
		{key: "AUTO_MIGRATE", value: "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/notes")
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestLoadReportsEnabled(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/notes")
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("MANAGER_TELEGRAM_ID", "12345")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.ReportsEnabled() || cfg.ManagerTelegramID != 12345 {
		t.Fatalf("reports should be enabled for manager 12345, got %d", cfg.ManagerTelegramID)
	}
}

func TestEmbeddedTracksMatchDefaults(t *testing.T) {
	tracks, err := LoadTracks("")
	if err != nil {
		t.Fatalf("LoadTracks: %v", err)
	}
	if !reflect.DeepEqual(tracks, group.DefaultTracks()) {
		t.Fatalf("embedded tracks differ from built-in defaults:\n%+v\n%+v", tracks, group.DefaultTracks())
	}
}

func TestParseTracksErrors(t *testing.T) {
	tests := map[string]string{
		"empty":           `tracks: []`,
		"bad weekday":     "tracks:\n  - program: PHP\n    double_note_day: funday\n    alternate_code: G0411\n",
		"missing code":    "tracks:\n  - program: PHP\n    double_note_day: friday\n    alternate_code: G0411\n    codes:\n      monday: G0411\n",
		"no alternate":    "tracks:\n  - program: PHP\n    double_note_day: friday\n",
		"not yaml at all": "tracks: [",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseTracks([]byte(raw)); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestLoadTracksFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.yaml")
	raw := "tracks:\n  - program: php\n    double_note_day: Wednesday\n    alternate_code: G0411\n    codes:\n" +
		"      monday: G1\n      tuesday: G2\n      wednesday: G3\n      thursday: G4\n      friday: G5\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tracks, err := LoadTracks(path)
	if err != nil {
		t.Fatalf("LoadTracks: %v", err)
	}
	php, err := tracks.Lookup(group.ProgramPHP)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if php.DoubleNoteDay != time.Wednesday || php.CodeFor(time.Friday) != "G5" {
		t.Fatalf("unexpected track %+v", php)
	}
	if _, err := tracks.Lookup(group.ProgramIOP); err == nil {
		t.Fatalf("IOP should be unknown in this file")
	}
}
