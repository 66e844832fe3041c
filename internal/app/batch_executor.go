package app

import (
	"context"
	"fmt"

	"therapy_notes_generator/internal/domain/note"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize bounds how many jobs run at once against the database and text service.
const DefaultBatchSize = 15

// ProcessFunc turns one job into a document.
type ProcessFunc func(ctx context.Context, job note.Job) (note.Document, error)

// BatchExecutor runs jobs in sequential batches. Jobs inside a batch run concurrently and every
// job settles on its own: a failure is logged and dropped without affecting its siblings.
type BatchExecutor struct {
	batchSize int
	logger    *logrus.Entry
}

func NewBatchExecutor(batchSize int, logger *logrus.Entry) *BatchExecutor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchExecutor{batchSize: batchSize, logger: logger.WithField("component", "batch_executor")}
}

type outcome struct {
	doc note.Document
	err error
}

// Run executes all jobs and returns the successful documents in job order.
// ErrNoDocuments is returned when no job succeeded.
func (x *BatchExecutor) Run(ctx context.Context, jobs []note.Job, process ProcessFunc) ([]note.Document, error) {
	results := make([]outcome, len(jobs))

	for start, batch := 0, 1; start < len(jobs); start, batch = start+x.batchSize, batch+1 {
		end := min(start+x.batchSize, len(jobs))

		// Each goroutine reports through its own slot and always returns nil, so Wait never
		// short-circuits and no sibling is cancelled.
		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = x.runOne(ctx, jobs[i], process)
				return nil
			})
		}
		_ = g.Wait()

		failed := 0
		for i := start; i < end; i++ {
			if results[i].err != nil {
				failed++
			}
		}
		x.logger.WithFields(logrus.Fields{
			"batch":  batch,
			"jobs":   end - start,
			"failed": failed,
		}).Debug("Batch settled")
	}

	docs := make([]note.Document, 0, len(jobs))
	for _, r := range results {
		if r.err == nil {
			docs = append(docs, r.doc)
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %d jobs, all failed or none planned", ErrNoDocuments, len(jobs))
	}
	return docs, nil
}

func (x *BatchExecutor) runOne(ctx context.Context, job note.Job, process ProcessFunc) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{err: fmt.Errorf("job panicked: %v", r)}
			x.logger.WithField("job", job.Path()).WithField("panic", r).Error("Document job panicked, document dropped")
		}
	}()

	doc, err := process(ctx, job)
	if err != nil {
		x.logger.WithError(err).WithFields(logrus.Fields{
			"job":     job.Path(),
			"variant": job.Variant,
		}).Error("Document job failed, document dropped")
		return outcome{err: err}
	}
	return outcome{doc: doc}
}
