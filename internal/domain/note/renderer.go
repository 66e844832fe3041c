package note

import "therapy_notes_generator/internal/domain/group"

// Template identifies the document layout to render.
type Template struct {
	Program group.Program
	Variant Variant
}

// Renderer turns a flat key/value bag into a document. A returned error fails the job.
type Renderer interface {
	Render(tpl Template, fields map[string]string) ([]byte, error)
}
