package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"therapy_notes_generator/internal/domain/group"
	"therapy_notes_generator/internal/domain/note"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:p><w:pPr><w:jc w:val="left"/></w:pPr><w:r><w:t>Patient: {{patient_name}}</w:t></w:r></w:p>` +
	`<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>Date: {{</w:t></w:r><w:r><w:t>da</w:t></w:r><w:r><w:t xml:space="preserve">te}} (</w:t></w:r><w:r><w:t>{{day}})</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>{{unknown_key}}done</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>{{progress_summary}}</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Tom &amp; Jerry</w:t></w:r></w:p>` +
	`</w:body></w:document>`

func buildTemplate(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		_, _ = io.WriteString(w, body)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func readParts(t *testing.T, b []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("rendered document is not a zip: %v", err)
	}
	out := make(map[string]string)
	for _, f := range zr.File {
		s, err := readPart(f)
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out[f.Name] = s
	}
	return out
}

func TestRenderFillsPlaceholdersAcrossRuns(t *testing.T) {
	tpl := note.Template{Program: group.ProgramPHP, Variant: note.VariantNormal}
	r := NewFromBytes(map[note.Template][]byte{tpl: buildTemplate(t, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   documentXML,
		"word/header1.xml":    `<w:hdr><w:p><w:r><w:t>{{clinical_name}}</w:t></w:r></w:p></w:hdr>`,
	})}, testLogger())

	out, err := r.Render(tpl, map[string]string{
		"patient_name":     "ANA <LOPEZ>",
		"date":             "11/06/2024",
		"day":              "Tuesday",
		"progress_summary": "line one\nline two",
		"clinical_name":    "Clinic & Co",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	parts := readParts(t, out)
	doc := parts["word/document.xml"]

	for _, want := range []string{
		`<w:t xml:space="preserve">Patient: ANA &lt;LOPEZ&gt;</w:t>`,
		`<w:rPr><w:b/></w:rPr><w:t xml:space="preserve">Date: 11/06/2024</w:t>`,
		`<w:t xml:space="preserve"> (</w:t>`,
		`<w:t xml:space="preserve">Tuesday)</w:t>`,
		`<w:t xml:space="preserve">done</w:t>`,
		`line one</w:t><w:br/><w:t xml:space="preserve">line two`,
		`<w:t>Tom &amp; Jerry</w:t>`,
		`<w:pPr><w:jc w:val="left"/></w:pPr>`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q\n%s", want, doc)
		}
	}
	if strings.Contains(doc, "{{") || strings.Contains(doc, "}}") {
		t.Errorf("placeholders left in document:\n%s", doc)
	}
	if !strings.Contains(parts["word/header1.xml"], "Clinic &amp; Co") {
		t.Errorf("header not filled: %s", parts["word/header1.xml"])
	}
	if parts["[Content_Types].xml"] != `<Types/>` {
		t.Errorf("non-content part changed: %q", parts["[Content_Types].xml"])
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	r := NewFromBytes(map[note.Template][]byte{}, testLogger())
	_, err := r.Render(note.Template{Program: group.ProgramIOP, Variant: note.VariantAbsence}, nil)
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestNewLoadsTemplatesFromDir(t *testing.T) {
	dir := t.TempDir()
	body := buildTemplate(t, map[string]string{"word/document.xml": documentXML})
	if err := os.WriteFile(filepath.Join(dir, "PHP_TEMPLATE.docx"), body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r, err := New(dir, DefaultFiles(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(r.templates) != 1 {
		t.Fatalf("loaded %d templates, want 1", len(r.templates))
	}

	if err := os.WriteFile(filepath.Join(dir, "IOP_TEMPLATE.docx"), []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir, DefaultFiles(), testLogger()); err == nil {
		t.Fatalf("expected an error for a corrupt template")
	}

	if _, err := New(t.TempDir(), DefaultFiles(), testLogger()); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound for an empty dir, got %v", err)
	}
}
