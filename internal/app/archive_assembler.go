package app

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"

	"therapy_notes_generator/internal/domain/note"

	"github.com/sirupsen/logrus"
)

var (
	localFileHeaderSig = []byte{'P', 'K', 0x03, 0x04}
	endOfCentralDirSig = []byte{'P', 'K', 0x05, 0x06}
)

// endOfCentralDirLen is the size of the end of central directory record without a comment.
const endOfCentralDirLen = 22

// ArchiveAssembler packages documents into one in-memory zip archive.
type ArchiveAssembler struct {
	logger *logrus.Entry
	// modified is stamped on every entry so identical input yields identical bytes.
	modified time.Time
}

func NewArchiveAssembler(logger *logrus.Entry) *ArchiveAssembler {
	return &ArchiveAssembler{
		logger:   logger.WithField("component", "archive"),
		modified: time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Assemble writes every non-empty document at "<folder>/<file>" and validates the result.
func (a *ArchiveAssembler) Assemble(docs []note.Document) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	written := 0
	for _, d := range docs {
		if len(d.Content) == 0 {
			a.logger.WithField("document", d.Path()).Warn("Skipping empty document")
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     d.Path(),
			Method:   zip.Deflate,
			Modified: a.modified,
		})
		if err != nil {
			return nil, &AssemblyError{Err: err, Detail: d.Path()}
		}
		if _, err := w.Write(d.Content); err != nil {
			return nil, &AssemblyError{Err: err, Detail: d.Path()}
		}
		written++
	}

	if written == 0 {
		return nil, &AssemblyError{Err: ErrEmptyArchive}
	}
	if err := zw.Close(); err != nil {
		return nil, &AssemblyError{Err: err, Detail: "closing archive"}
	}

	out := buf.Bytes()
	if err := ValidateArchive(out); err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"documents": written,
		"bytes":     len(out),
	}).Info("Archive assembled")
	return out, nil
}

// ValidateArchive checks the local file header signature at the start and the end of central
// directory signature where a comment-free archive places it, then re-reads the central
// directory and requires at least one entry.
func ValidateArchive(b []byte) error {
	if len(b) < len(localFileHeaderSig)+endOfCentralDirLen {
		return &AssemblyError{Err: ErrInvalidArchive, Detail: fmt.Sprintf("archive too small (%d bytes)", len(b))}
	}
	if !bytes.Equal(b[:len(localFileHeaderSig)], localFileHeaderSig) {
		return &AssemblyError{Err: ErrInvalidArchive, Detail: "missing local file header signature"}
	}
	eocd := b[len(b)-endOfCentralDirLen:]
	if !bytes.Equal(eocd[:len(endOfCentralDirSig)], endOfCentralDirSig) {
		return &AssemblyError{Err: ErrInvalidArchive, Detail: "missing end of central directory signature"}
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return &AssemblyError{Err: ErrInvalidArchive, Detail: fmt.Sprintf("unreadable central directory: %v", err)}
	}
	if len(zr.File) == 0 {
		return &AssemblyError{Err: ErrInvalidArchive, Detail: "archive has no entries"}
	}
	return nil
}
