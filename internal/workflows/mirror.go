package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/usecases"
)

// MirrorWorkflowName is the registered name of MirrorWorkflow.
const MirrorWorkflowName = "MirrorWorkflow"

// mirrorFanOut is the number of page activities in flight at once.
const mirrorFanOut = 4

// MirrorInput is the input for the mirror workflow.
type MirrorInput struct {
	Bounds domain.MapBounds
}

// MirrorWorkflow copies every backend page inside the input bounds into the
// local store. Page 1 runs first to learn the page count; the remaining
// pages fan out in batches. A page that still fails after its retries is
// counted and skipped, so one bad page does not void a long run. The run
// fails only when nothing could be stored.
func MirrorWorkflow(ctx workflow.Context, input MirrorInput) (*usecases.MirrorReport, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting mirror workflow", "bounds", input.Bounds.String())

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: first page, which also reports the page count
	var first PageResult
	if err := workflow.ExecuteActivity(ctx, "MirrorPage", input.Bounds, 1).Get(ctx, &first); err != nil {
		return nil, fmt.Errorf("mirror page 1: %w", err)
	}

	report := &usecases.MirrorReport{Pages: 1, Stored: first.Stored, Total: first.Total}
	if first.PageCount > 1 {
		report.Pages = first.PageCount
	}

	// Step 2: remaining pages in batches
	var errs []error
	for start := 2; start <= first.PageCount; start += mirrorFanOut {
		end := start + mirrorFanOut - 1
		if end > first.PageCount {
			end = first.PageCount
		}

		futures := make(map[int]workflow.Future, end-start+1)
		for page := start; page <= end; page++ {
			futures[page] = workflow.ExecuteActivity(ctx, "MirrorPage", input.Bounds, page)
		}
		for page := start; page <= end; page++ {
			var res PageResult
			if err := futures[page].Get(ctx, &res); err != nil {
				logger.Warn("mirror page failed", "page", page, "error", err)
				report.FailedPages++
				errs = append(errs, fmt.Errorf("page %d: %w", page, err))
				continue
			}
			report.Stored += res.Stored
		}
	}

	if report.Stored == 0 && len(errs) > 0 {
		return report, errors.Join(errs...)
	}

	// Step 3: announce the new data; a broker outage does not undo the copy
	if err := workflow.ExecuteActivity(ctx, "PublishCompleted", report.Stored).Get(ctx, nil); err != nil {
		logger.Warn("mirror completion not published", "error", err)
	}

	logger.Info("Mirror workflow finished", "stored", report.Stored, "failed_pages", report.FailedPages)
	return report, nil
}
