package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"therapy_notes_generator/internal/domain/group"
	"therapy_notes_generator/internal/domain/textgen"

	"github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Client implements textgen.Generator over the Gemini generateContent REST endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *logrus.Entry
}

func New(cfg Config, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.WithFields(logrus.Fields{"client": "gemini", "model": cfg.Model}),
	}, nil
}

var _ textgen.Generator = (*Client)(nil)

func (c *Client) GenerateClientResponse(ctx context.Context, req textgen.ResponseRequest) (string, error) {
	return c.generate(ctx, clientResponsePrompt(req))
}

func (c *Client) GenerateProgressSummary(ctx context.Context, req textgen.SummaryRequest) (string, error) {
	return c.generate(ctx, progressSummaryPrompt(req))
}

func clientResponsePrompt(req textgen.ResponseRequest) string {
	therapist := "PHP Therapist"
	if req.Program == group.ProgramIOP {
		therapist = "IOP Therapist"
	}

	var b strings.Builder
	b.WriteString("Generate a Client Response entry for a group therapy note. Include: 1) A quoted statement from the client (1-2 sentences) expressing a challenge, reflection, or emotional reaction. 2) The therapist's intervention (2-3 sentences) explaining how the clinician guided the client toward insight, cognitive reframing, or behavioral change. Tone: Clinical, empathetic, third-person, past tense.\n\n")
	fmt.Fprintf(&b, "Activity: %s\nSubactivity: %s\nContext: %s", req.ActivityName, req.SubactivityName, req.Paragraph)
	if req.GoalNumber > 0 && req.GoalText != "" {
		fmt.Fprintf(&b, "\n\nTreatment Goal: %s\nThe client's statement MUST be directly related to this treatment goal.", req.GoalText)
	}
	fmt.Fprintf(&b, "\n\nResponse format:\n\"[Client statement]\" %s [therapist intervention].\n\nResponse:", therapist)
	return b.String()
}

func progressSummaryPrompt(req textgen.SummaryRequest) string {
	lines := make([]string, 0, len(req.Activities))
	for _, a := range req.Activities {
		lines = append(lines, a.Name+": "+a.Description)
	}

	var b strings.Builder
	b.WriteString("Write the explanatory paragraph for 'Progress was Minimal.' Include: 1) The insight or understanding the client gained during the session. 2) Ongoing barriers (e.g., avoidance, emotional suppression, difficulty applying skills). 3) The recommended therapeutic focus for next sessions. Tone: Professional, clinical, third-person, past tense, 5-7 sentences. IMPORTANT: The summary must be between 480 and 560 characters to fit on a single page.\n\n")
	fmt.Fprintf(&b, "Patient: %s\nActivities:\n- %s\n\nResponse:", req.PatientName, strings.Join(lines, "\n- "))
	return b.String()
}

// --- generateContent wire types ---

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// HTTPError is a non-2xx answer from the API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body := generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}}

	backoff := 500 * time.Millisecond
	for attempt := 0; ; attempt++ {
		text, err := c.doOnce(ctx, body)
		if err == nil {
			return text, nil
		}
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || !httpErr.retryable() || attempt >= c.cfg.MaxRetries {
			return "", err
		}

		c.logger.WithError(err).WithFields(logrus.Fields{
			"attempt":     attempt + 1,
			"max_retries": c.cfg.MaxRetries,
			"sleep":       backoff.String(),
		}).Warn("Gemini request retrying")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (c *Client) doOnce(ctx context.Context, body generateRequest) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, url.PathEscape(c.cfg.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("failed to read gemini response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("gemini decode error: %w", err)
	}
	var b strings.Builder
	if len(out.Candidates) > 0 {
		for _, p := range out.Candidates[0].Content.Parts {
			b.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
