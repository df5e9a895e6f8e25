package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"fastp-batch/internal/batch"
	"fastp-batch/internal/config"
	"fastp-batch/internal/diagnostics"
	"fastp-batch/internal/domain"
	"fastp-batch/internal/jobs"
	"fastp-batch/internal/notify"
	"fastp-batch/internal/storage"
	"fastp-batch/internal/trim"
)

// App wires configuration, jobs, the trimming runner and notifications.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Jobs        *jobs.Manager
	Runner      jobRunner
	Diagnostics domain.DiagnosticReport
	Console     *notify.Console

	// EchoOutput forwards every fastp output line to the console.
	EchoOutput bool

	checker *diagnostics.Checker
	events  *jobs.EventBus
	out     io.Writer
	newID   func() string

	mu sync.Mutex
}

// jobRunner isolates the trimming runner behind an interface.
type jobRunner interface {
	Run(ctx context.Context, req trim.Request) (trim.Result, error)
}

// BatchReport is the fan-in view of one batch run.
type BatchReport struct {
	Jobs     []domain.Job     `json:"jobs"`
	Outcomes []batch.Outcome  `json:"-"`
	Outputs  []storage.DirRef `json:"outputs"`
}

// FailedCount returns how many jobs errored or exited non-zero.
func (r BatchReport) FailedCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

// New builds the application with persisted settings and startup diagnostics.
func New(store config.Store, out io.Writer) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	if store == nil {
		store = config.NewJSONStore(config.DefaultSettingsPath())
	}
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if out == nil {
		out = io.Discard
	}
	a := &App{
		Store:   store,
		Jobs:    jobs.NewManager(),
		Console: notify.NewConsole(out),
		checker: diagnostics.NewChecker(),
		events:  jobs.NewEventBus(0),
		out:     out,
	}
	a.UseSettings(settings)
	return a, nil
}

// UseSettings replaces the active settings for this process without
// persisting them, and rebuilds the runner and diagnostics accordingly.
func (a *App) UseSettings(settings domain.Settings) {
	settings = normalizeSettings(settings)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	a.Runner = trim.NewRunner(settings, storage.NewStager(settings.CacheDir), storage.NewStore(settings.StorageRoot))
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.UseSettings(normalized)
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.UseSettings(settings)
	return a.GetDiagnostics(), nil
}

// RunBatch organizes the request into jobs and runs them concurrently. The
// returned error covers only problems that prevent the batch from starting.
func (a *App) RunBatch(ctx context.Context, req batch.Request) (BatchReport, error) {
	inputs, err := batch.Organize(req)
	if err != nil {
		return BatchReport{}, err
	}
	return a.run(ctx, inputs)
}

// RunJob runs one job through the same path as a batch.
func (a *App) RunJob(ctx context.Context, job domain.JobInput) (batch.Outcome, error) {
	report, err := a.run(ctx, []domain.JobInput{job})
	if err != nil {
		return batch.Outcome{}, err
	}
	outcome := report.Outcomes[0]
	return outcome, outcome.Err
}

// Events returns all events with sequence greater than sinceSeq.
func (a *App) Events(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// run registers every job, executes them and maps outcomes to job events.
func (a *App) run(ctx context.Context, inputs []domain.JobInput) (BatchReport, error) {
	a.mu.Lock()
	runner := a.Runner
	concurrency := a.Settings.Concurrency
	a.mu.Unlock()
	if runner == nil {
		return BatchReport{}, fmt.Errorf("trimming runner is not configured")
	}

	ids := make([]string, len(inputs))
	for i, job := range inputs {
		ids[i] = a.jobID()
		if err := a.Jobs.Register(domain.Job{ID: ids[i], Sample: job.Name(), ReadType: job.ReadType()}); err != nil {
			return BatchReport{}, err
		}
		a.publishStatus(ids[i], job.Name(), domain.JobStatusQueued, "Job queued")
	}

	executor := batch.NewExecutor(runner, concurrency)
	outcomes := executor.Run(ctx, inputs, batch.Hooks{
		Request: func(i int, job domain.JobInput) trim.Request {
			return a.buildRequest(ids[i], job)
		},
		Done: func(i int, outcome batch.Outcome) {
			a.finishJob(ids[i], outcome)
		},
	})

	report := BatchReport{
		Jobs:     make([]domain.Job, len(ids)),
		Outcomes: outcomes,
		Outputs:  batch.Outputs(outcomes),
	}
	for i, id := range ids {
		report.Jobs[i], _ = a.Jobs.Get(id)
	}
	return report, nil
}

// buildRequest attaches per-job observability to one runner request.
func (a *App) buildRequest(jobID string, job domain.JobInput) trim.Request {
	sample := job.Name()
	notifiers := []notify.Notifier{a.events.Notifier(jobID, sample)}
	if a.Console != nil {
		notifiers = append(notifiers, a.Console.WithPrefix(sample))
	}

	return trim.Request{
		Job:      job,
		Notifier: notify.Multi(notifiers...),
		OnStage: func(stage string) {
			status, ok := mapStageToStatus(stage)
			if !ok {
				return
			}
			if err := a.Jobs.Transition(jobID, status); err == nil {
				a.publishStatus(jobID, sample, status, "Running "+stage+" stage")
			}
		},
		OnLine: func(line string) {
			a.events.Publish(jobs.Event{
				JobID:   jobID,
				Sample:  sample,
				Type:    jobs.EventTypeLog,
				Message: line,
			})
			if a.EchoOutput {
				a.echo(sample, line)
			}
		},
	}
}

// finishJob moves a job to its terminal state and records the result.
func (a *App) finishJob(jobID string, outcome batch.Outcome) {
	sample := outcome.Job.Name()
	res := outcome.Result

	if outcome.Err != nil {
		status := domain.JobStatusFailed
		if errors.Is(outcome.Err, context.Canceled) || errors.Is(outcome.Err, context.DeadlineExceeded) {
			status = domain.JobStatusCancelled
		}
		_ = a.Jobs.Transition(jobID, status)
		a.publishStatus(jobID, sample, status, "Job "+string(status))
		a.events.Publish(jobs.Event{
			JobID:   jobID,
			Sample:  sample,
			Type:    jobs.EventTypeError,
			Status:  status,
			Message: outcome.Err.Error(),
		})

		var pipelineErr *trim.PipelineError
		if errors.As(outcome.Err, &pipelineErr) && pipelineErr.CommandLog.Command != "" {
			a.publishCommand(jobID, sample, "Failed command", pipelineErr.CommandLog)
		}
		return
	}

	a.publishCommand(jobID, sample, "Command completed", res.Log)

	status := domain.JobStatusDone
	message := "Job completed"
	if res.Failed() {
		status = domain.JobStatusFailed
		message = fmt.Sprintf("fastp exited with status %d", res.Log.ExitCode)
	} else if res.Partial() {
		message = "Job completed with missing or damaged outputs"
	}
	_ = a.Jobs.Transition(jobID, status)
	a.publishStatus(jobID, sample, status, message)
	a.events.Publish(jobs.Event{
		JobID:     jobID,
		Sample:    sample,
		Type:      jobs.EventTypeResult,
		Status:    status,
		Message:   message,
		ExitCode:  res.Log.ExitCode,
		OutputURI: res.Output.URI,
	})
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(jobID, sample string, status domain.JobStatus, message string) {
	a.events.Publish(jobs.Event{
		JobID:   jobID,
		Sample:  sample,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publishCommand records one trimmer invocation.
func (a *App) publishCommand(jobID, sample, message string, log trim.CommandLog) {
	a.events.Publish(jobs.Event{
		JobID:    jobID,
		Sample:   sample,
		Type:     jobs.EventTypeLog,
		Message:  message,
		Command:  log.Command,
		Args:     log.Args,
		ExitCode: log.ExitCode,
	})
}

// echo writes one live output line.
func (a *App) echo(sample, line string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, "%s | %s\n", sample, line)
}

// jobID returns a fresh job identifier.
func (a *App) jobID() string {
	if a.newID != nil {
		return a.newID()
	}
	return uuid.NewString()
}

// mapStageToStatus maps pipeline stage names to job statuses.
func mapStageToStatus(stage string) (domain.JobStatus, bool) {
	switch stage {
	case trim.StageStaging:
		return domain.JobStatusStaging, true
	case trim.StageTrimming:
		return domain.JobStatusTrimming, true
	case trim.StagePublishing:
		return domain.JobStatusPublishing, true
	default:
		return "", false
	}
}

// normalizeSettings trims user inputs and fills unset values with defaults.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.TrimmerPath = strings.TrimSpace(settings.TrimmerPath)
	settings.WorkDir = strings.TrimSpace(settings.WorkDir)
	settings.StorageRoot = strings.TrimSpace(settings.StorageRoot)
	settings.CacheDir = strings.TrimSpace(settings.CacheDir)
	return config.WithDefaults(settings)
}
