package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"therapy_notes_generator/internal/domain/group"
	"therapy_notes_generator/internal/domain/note"

	"github.com/sirupsen/logrus"
)

var ErrTemplateNotFound = fmt.Errorf("document template not found")

var (
	paragraphRe   = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	textRe        = regexp.MustCompile(`(?s)(<w:t(?:\s[^>]*)?>)(.*?)(</w:t>)`)
	placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)
	// parts of the package that can carry placeholders
	contentPartRe = regexp.MustCompile(`^word/(document|header\d*|footer\d*)\.xml$`)
)

// DefaultFiles maps every (program, variant) pair to its template file name.
func DefaultFiles() map[note.Template]string {
	return map[note.Template]string{
		{Program: group.ProgramPHP, Variant: note.VariantNormal}:  "PHP_TEMPLATE.docx",
		{Program: group.ProgramIOP, Variant: note.VariantNormal}:  "IOP_TEMPLATE.docx",
		{Program: group.ProgramPHP, Variant: note.VariantAbsence}: "PHP_ABSENCE_TEMPLATE.docx",
		{Program: group.ProgramIOP, Variant: note.VariantAbsence}: "IOP_ABSENCE_TEMPLATE.docx",
	}
}

// Renderer fills {{key}} placeholders of .docx templates. Templates are read once at
// construction; Render is safe for concurrent use.
type Renderer struct {
	templates map[note.Template][]byte
	logger    *logrus.Entry
}

// New loads the templates named in files from dir. Missing files are logged and reported by
// Render only when a note needs them.
func New(dir string, files map[note.Template]string, logger *logrus.Entry) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[note.Template][]byte, len(files)),
		logger:    logger.WithField("component", "docx"),
	}
	for tpl, name := range files {
		path := filepath.Join(dir, name)
		b, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			r.logger.WithFields(logrus.Fields{"template": path, "program": tpl.Program, "variant": tpl.Variant}).Warn("Template file missing")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", path, err)
		}
		if _, err := zip.NewReader(bytes.NewReader(b), int64(len(b))); err != nil {
			return nil, fmt.Errorf("template %s is not a docx package: %w", path, err)
		}
		r.templates[tpl] = b
	}
	if len(r.templates) == 0 {
		return nil, fmt.Errorf("%w: no templates in %s", ErrTemplateNotFound, dir)
	}
	return r, nil
}

// NewFromBytes builds a renderer over in-memory templates.
func NewFromBytes(templates map[note.Template][]byte, logger *logrus.Entry) *Renderer {
	return &Renderer{templates: templates, logger: logger.WithField("component", "docx")}
}

var _ note.Renderer = (*Renderer)(nil)

func (r *Renderer) Render(tpl note.Template, fields map[string]string) ([]byte, error) {
	src, ok := r.templates[tpl]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, tpl.Program, tpl.Variant)
	}
	zr, err := zip.NewReader(bytes.NewReader(src), int64(len(src)))
	if err != nil {
		return nil, fmt.Errorf("failed to open template: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		if !contentPartRe.MatchString(f.Name) {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("failed to copy %s: %w", f.Name, err)
			}
			continue
		}

		part, err := readPart(f)
		if err != nil {
			return nil, err
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified})
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
		if _, err := io.WriteString(w, Fill(part, fields)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close document: %w", err)
	}
	return buf.Bytes(), nil
}

func readPart(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	return string(b), nil
}

// Fill replaces placeholders paragraph by paragraph. A placeholder may span several text runs;
// its value is written into the run where it starts and the remaining characters are removed
// from the following runs, so run formatting is kept. Unknown keys render empty.
func Fill(part string, fields map[string]string) string {
	return paragraphRe.ReplaceAllStringFunc(part, func(p string) string {
		return fillParagraph(p, fields)
	})
}

func fillParagraph(p string, fields map[string]string) string {
	locs := textRe.FindAllStringSubmatchIndex(p, -1)
	if len(locs) == 0 {
		return p
	}

	var joined strings.Builder
	var owner []int
	for i, loc := range locs {
		t := html.UnescapeString(p[loc[4]:loc[5]])
		joined.WriteString(t)
		for j := 0; j < len(t); j++ {
			owner = append(owner, i)
		}
	}
	text := joined.String()
	matches := placeholderRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return p
	}

	out := make([]strings.Builder, len(locs))
	changed := make([]bool, len(locs))
	pos := 0
	for _, m := range matches {
		for ; pos < m[0]; pos++ {
			out[owner[pos]].WriteByte(text[pos])
		}
		start := owner[m[0]]
		out[start].WriteString(fields[text[m[2]:m[3]]])
		for i := m[0]; i < m[1]; i++ {
			changed[owner[i]] = true
		}
		pos = m[1]
	}
	for ; pos < len(text); pos++ {
		out[owner[pos]].WriteByte(text[pos])
	}

	var b strings.Builder
	last := 0
	for i, loc := range locs {
		b.WriteString(p[last:loc[0]])
		if changed[i] {
			b.WriteString(`<w:t xml:space="preserve">`)
			b.WriteString(escapeText(out[i].String()))
			b.WriteString(`</w:t>`)
		} else {
			b.WriteString(p[loc[0]:loc[1]])
		}
		last = loc[1]
	}
	b.WriteString(p[last:])
	return b.String()
}

// escapeText escapes a value for a w:t element and turns line breaks into w:br elements.
func escapeText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString(`</w:t><w:br/><w:t xml:space="preserve">`)
		}
		_ = xml.EscapeText(&b, []byte(line))
	}
	return b.String()
}
