package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"therapy_notes_generator/internal/domain/group"
	"therapy_notes_generator/internal/domain/textgen"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestClient(t *testing.T, h http.HandlerFunc, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{APIKey: "k", Model: "gemini-test", BaseURL: srv.URL, MaxRetries: retries}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestGenerateClientResponse(t *testing.T) {
	var prompt string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-test:generateContent" || r.Header.Get("x-goog-api-key") != "k" || r.URL.RawQuery != "" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		prompt = req.Contents[0].Parts[0].Text
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"  \"I felt heard.\" "},{"text":"The therapist validated."}]}}]}`)
	}, 0)

	got, err := c.GenerateClientResponse(context.Background(), textgen.ResponseRequest{
		Program:      group.ProgramIOP,
		ActivityName: "Life Skills",
		Paragraph:    "budgeting",
		GoalNumber:   2,
		GoalText:     "Improve coping",
	})
	if err != nil {
		t.Fatalf("GenerateClientResponse: %v", err)
	}
	if got != `"I felt heard." The therapist validated.` {
		t.Fatalf("text = %q", got)
	}
	for _, want := range []string{"Activity: Life Skills", "Context: budgeting", "Treatment Goal: Improve coping", "IOP Therapist"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGenerateProgressSummaryPrompt(t *testing.T) {
	p := progressSummaryPrompt(textgen.SummaryRequest{
		PatientName: "ANA LOPEZ",
		Activities:  []textgen.SummaryActivity{{Name: "A", Description: "one"}, {Name: "B", Description: "two"}},
	})
	if !strings.Contains(p, "Patient: ANA LOPEZ\nActivities:\n- A: one\n- B: two") {
		t.Fatalf("unexpected prompt:\n%s", p)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}, 2)

	got, err := c.GenerateProgressSummary(context.Background(), textgen.SummaryRequest{})
	if err != nil || got != "ok" {
		t.Fatalf("got (%q, %v)", got, err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad key", http.StatusForbidden)
	}, 3)

	_, err := c.GenerateProgressSummary(context.Background(), textgen.SummaryRequest{})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 HTTPError, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}, testLogger()); err == nil {
		t.Fatalf("expected an error without api key")
	}
}

func TestRequestErrorsDoNotExposeAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Config{APIKey: "SECRET-KEY-123", Model: "gemini-test", BaseURL: base}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.GenerateProgressSummary(context.Background(), textgen.SummaryRequest{PatientName: "Ana"})
	if err == nil {
		t.Fatalf("expected a transport error")
	}
	if strings.Contains(err.Error(), "SECRET-KEY-123") {
		t.Fatalf("error text contains the api key: %v", err)
	}
}
