package econometrics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RunBatch estimates an ordered collection of named specifications against
// the frame. Entries are dispatched to a worker pool bounded by the engine's
// worker setting; result placement is by original index, so batch order
// always matches entry order regardless of completion order.
//
// A failure on one specification never aborts the batch: the entry is stored
// as a non-converged model carrying the captured reason, and reported in the
// returned failure list.
func (e *Estimator) RunBatch(ctx context.Context, frame *Frame, entries []BatchEntry) (*Batch, []EntryError) {
	start := time.Now()
	runID := uuid.NewString()

	e.logger.InfoContext(ctx, "starting estimation batch",
		"run_id", runID,
		"specs", len(entries),
		"workers", e.settings.Workers,
	)

	models := make([]*FittedModel, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.settings.Workers)
	for idx, entry := range entries {
		idx, entry := idx, entry
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				models[idx] = failedModel(entry.Spec, err)
				return nil
			}
			model, err := e.Fit(gctx, frame, entry.Spec)
			if err != nil {
				e.logger.WarnContext(gctx, "specification failed",
					"run_id", runID,
					"name", entry.Name,
					"error", err,
				)
				models[idx] = failedModel(entry.Spec, err)
				return nil
			}
			models[idx] = model
			return nil
		})
	}
	// Workers never return errors; failures are recorded per entry.
	_ = g.Wait()

	batch := &Batch{
		RunID:    runID,
		Names:    make([]string, 0, len(entries)),
		Models:   make(map[string]*FittedModel, len(entries)),
		Duration: time.Since(start),
	}
	var failures []EntryError
	for idx, entry := range entries {
		batch.Names = append(batch.Names, entry.Name)
		batch.Models[entry.Name] = models[idx]
		if !models[idx].Converged {
			failures = append(failures, EntryError{Name: entry.Name, Err: models[idx].failure()})
		}
	}

	e.logger.InfoContext(ctx, "estimation batch completed",
		"run_id", runID,
		"specs", len(entries),
		"failures", len(failures),
		"duration", batch.Duration,
	)
	return batch, failures
}

// failedModel records a per-entry estimation failure as a non-converged model
func failedModel(spec ModelSpec, err error) *FittedModel {
	return &FittedModel{
		Spec:          spec,
		Converged:     false,
		FailureReason: err.Error(),
	}
}

type batchEntryFailure struct{ reason string }

func (f *batchEntryFailure) Error() string { return f.reason }

// failure re-wraps the stored failure reason as an error value
func (m *FittedModel) failure() error {
	if m.Converged || m.FailureReason == "" {
		return nil
	}
	return &batchEntryFailure{reason: m.FailureReason}
}
