package batch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"fastp-batch/internal/domain"
	"fastp-batch/internal/storage"
	"fastp-batch/internal/trim"
)

// jobRunner isolates the trimming runner behind an interface.
type jobRunner interface {
	Run(ctx context.Context, req trim.Request) (trim.Result, error)
}

// Outcome is the fan-in record of one job.
type Outcome struct {
	Job    domain.JobInput
	Result trim.Result
	Err    error
}

// OK reports whether the job ran and the trimmer exited cleanly.
func (o Outcome) OK() bool {
	return o.Err == nil && !o.Result.Failed()
}

// Hooks customize each job submitted by the executor.
type Hooks struct {
	// Request builds the runner request for one job; the default carries only the job.
	Request func(index int, job domain.JobInput) trim.Request
	// Done is called once per job as soon as it finishes.
	Done func(index int, outcome Outcome)
}

// Executor fans job inputs out to a bounded number of concurrent runs.
type Executor struct {
	runner jobRunner
	limit  int
}

// NewExecutor creates an executor running at most limit jobs at once.
func NewExecutor(runner jobRunner, limit int) *Executor {
	if limit <= 0 {
		limit = 1
	}
	return &Executor{runner: runner, limit: limit}
}

// Run executes every job and returns outcomes in input order. A failing job
// never stops its siblings.
func (e *Executor) Run(ctx context.Context, inputs []domain.JobInput, hooks Hooks) []Outcome {
	outcomes := make([]Outcome, len(inputs))

	var g errgroup.Group
	g.SetLimit(e.limit)
	for i, job := range inputs {
		g.Go(func() error {
			req := trim.Request{Job: job}
			if hooks.Request != nil {
				req = hooks.Request(i, job)
				req.Job = job
			}

			var outcome Outcome
			if err := ctx.Err(); err != nil {
				outcome = Outcome{Job: job, Err: err}
			} else {
				res, err := e.runner.Run(ctx, req)
				outcome = Outcome{Job: job, Result: res, Err: err}
			}

			outcomes[i] = outcome
			if hooks.Done != nil {
				hooks.Done(i, outcome)
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Outputs collects the published directory of every job, in input order.
// Jobs that never reached publishing contribute an empty reference.
func Outputs(outcomes []Outcome) []storage.DirRef {
	refs := make([]storage.DirRef, len(outcomes))
	for i, o := range outcomes {
		refs[i] = o.Result.Output
	}
	return refs
}
