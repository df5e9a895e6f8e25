package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"fastp-batch/internal/batch"
	"fastp-batch/internal/diagnostics"
	"fastp-batch/internal/domain"
	"fastp-batch/internal/jobs"
	"fastp-batch/internal/notify"
	"fastp-batch/internal/storage"
	"fastp-batch/internal/trim"
)

// fakeStore returns deterministic settings for App tests.
type fakeStore struct {
	settings domain.Settings
	saved    int
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	return s.settings, nil
}

// Save records the saved settings.
func (s *fakeStore) Save(cfg domain.Settings) error {
	s.settings = cfg
	s.saved++
	return nil
}

// fakeRunner allows injecting custom run behavior per test.
type fakeRunner struct {
	run func(ctx context.Context, req trim.Request) (trim.Result, error)
}

// Run delegates to injected function.
func (r *fakeRunner) Run(ctx context.Context, req trim.Request) (trim.Result, error) {
	if r.run == nil {
		return trim.Result{Sample: req.Job.Name()}, nil
	}
	return r.run(ctx, req)
}

// newTestApp builds an App without touching the user's home directory.
func newTestApp(runner jobRunner, console *bytes.Buffer) *App {
	var seq int64
	app := &App{
		Settings: domain.Settings{Concurrency: 2},
		Store:    &fakeStore{},
		Jobs:     jobs.NewManager(),
		Runner:   runner,
		events:   jobs.NewEventBus(1000),
		newID: func() string {
			return fmt.Sprintf("job-%d", atomic.AddInt64(&seq, 1))
		},
	}
	if console != nil {
		app.out = console
		app.Console = notify.NewConsole(console)
	}
	return app
}

// stageThrough drives a request through every stage like the real runner.
func stageThrough(req trim.Request) {
	req.OnStage(trim.StageStaging)
	req.OnStage(trim.StageTrimming)
	req.OnStage(trim.StagePublishing)
}

func pairedRequest(names ...string) batch.Request {
	req := batch.Request{QualityThreshold: 30}
	for _, name := range names {
		req.PairedEnd = append(req.PairedEnd, domain.PairedEnd{
			Name:  name,
			Read1: domain.FileRef(name + "_1.fastq"),
			Read2: domain.FileRef(name + "_2.fastq"),
		})
	}
	return req
}

// TestRunBatchIsolatesFailures checks that one failing sample leaves siblings done.
func TestRunBatchIsolatesFailures(t *testing.T) {
	var console bytes.Buffer
	app := newTestApp(&fakeRunner{run: func(ctx context.Context, req trim.Request) (trim.Result, error) {
		stageThrough(req)
		name := req.Job.Name()
		if name == "SRR579292" {
			req.Notifier.Notify(notify.LevelError, notify.Message{
				Title: "An error was raised while running fastp for " + name,
				Body:  "ERROR: something failed",
			})
			return trim.Result{Sample: name, Log: trim.CommandLog{Command: "fastp", ExitCode: 255}}, nil
		}
		req.OnLine("Read1 before filtering:")
		return trim.Result{
			Sample: name,
			Log:    trim.CommandLog{Command: "fastp"},
			Output: storage.DirRef{Remote: "fastp_results/" + name, URI: "file:///store/fastp_results/" + name},
		}, nil
	}}, &console)
	app.EchoOutput = true

	report, err := app.RunBatch(context.Background(), pairedRequest("SRR579291", "SRR579292"))
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if got := report.FailedCount(); got != 1 {
		t.Fatalf("FailedCount() = %d, want 1", got)
	}
	if report.Jobs[0].Status != domain.JobStatusDone {
		t.Fatalf("jobs[0] = %s, want done", report.Jobs[0].Status)
	}
	if report.Jobs[1].Status != domain.JobStatusFailed {
		t.Fatalf("jobs[1] = %s, want failed", report.Jobs[1].Status)
	}
	if report.Outputs[0].Remote != "fastp_results/SRR579291" {
		t.Fatalf("outputs[0] = %+v", report.Outputs[0])
	}

	events := app.Events(0)
	assertEventTypeExists(t, events, jobs.EventTypeStatus)
	assertEventTypeExists(t, events, jobs.EventTypeLog)
	assertEventTypeExists(t, events, jobs.EventTypeResult)

	errorNotes := 0
	for _, e := range events {
		if e.Type == jobs.EventTypeNotification && e.Level == notify.LevelError {
			errorNotes++
			if e.Sample != "SRR579292" || e.Message != "ERROR: something failed" {
				t.Fatalf("unexpected error notification: %+v", e)
			}
		}
	}
	if errorNotes != 1 {
		t.Fatalf("error notifications = %d, want 1", errorNotes)
	}

	out := console.String()
	if !strings.Contains(out, "ERROR: something failed") {
		t.Fatalf("console output missing error: %q", out)
	}
	if !strings.Contains(out, "SRR579291 | Read1 before filtering:") {
		t.Fatalf("console output missing echoed line: %q", out)
	}
}

// TestRunBatchPipelineErrorPublishesErrorEvents checks error path emissions.
func TestRunBatchPipelineErrorPublishesErrorEvents(t *testing.T) {
	app := newTestApp(&fakeRunner{run: func(ctx context.Context, req trim.Request) (trim.Result, error) {
		req.OnStage(trim.StageStaging)
		req.OnStage(trim.StageTrimming)
		return trim.Result{}, &trim.PipelineError{
			Stage:      trim.StageTrimming,
			Message:    "fastp could not be run",
			CommandLog: trim.CommandLog{Command: "fastp", Args: []string{"--in1", "a"}, ExitCode: -1},
			Err:        errors.New("executable file not found"),
		}
	}}, nil)

	report, err := app.RunBatch(context.Background(), pairedRequest("SRR579291"))
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if report.Jobs[0].Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", report.Jobs[0].Status)
	}

	events := app.Events(0)
	assertEventTypeExists(t, events, jobs.EventTypeError)
	assertEventTypeExists(t, events, jobs.EventTypeLog)
}

// TestRunBatchCancelledContextMarksJobsCancelled checks cancellation mapping.
func TestRunBatchCancelledContextMarksJobsCancelled(t *testing.T) {
	app := newTestApp(&fakeRunner{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := app.RunBatch(ctx, pairedRequest("a", "b"))
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	for _, job := range report.Jobs {
		if job.Status != domain.JobStatusCancelled {
			t.Fatalf("job %s status = %s, want cancelled", job.ID, job.Status)
		}
	}
}

// TestRunBatchRejectsDuplicates ensures organizer errors stop the batch.
func TestRunBatchRejectsDuplicates(t *testing.T) {
	app := newTestApp(&fakeRunner{}, nil)
	if _, err := app.RunBatch(context.Background(), pairedRequest("a", "a")); !errors.Is(err, batch.ErrDuplicateSample) {
		t.Fatalf("RunBatch() error = %v, want %v", err, batch.ErrDuplicateSample)
	}
	if len(app.Jobs.Snapshot()) != 0 {
		t.Fatal("no job should be registered")
	}
}

// TestRunJobReturnsOutcome checks the single-job path.
func TestRunJobReturnsOutcome(t *testing.T) {
	app := newTestApp(&fakeRunner{run: func(ctx context.Context, req trim.Request) (trim.Result, error) {
		stageThrough(req)
		return trim.Result{Sample: req.Job.Name()}, nil
	}}, nil)

	job := domain.JobInput{
		Sample:           domain.SingleEnd{Name: "testSRR_single", Read1: "r1.fastq"},
		QualityThreshold: 30,
		Adapter:          domain.AutoDetect{},
	}
	outcome, err := app.RunJob(context.Background(), job)
	if err != nil {
		t.Fatalf("RunJob() error = %v", err)
	}
	if !outcome.OK() || outcome.Result.Sample != "testSRR_single" {
		t.Fatalf("outcome = %+v", outcome)
	}
	if counts := app.Jobs.Counts(); counts[domain.JobStatusDone] != 1 {
		t.Fatalf("counts = %v, want one done", counts)
	}
}

// TestSaveSettingsNormalizesAndRebuildsRunner checks settings persistence.
func TestSaveSettingsNormalizesAndRebuildsRunner(t *testing.T) {
	root := t.TempDir()
	store := &fakeStore{}
	app := &App{Store: store, checker: diagnostics.NewChecker()}

	saved, err := app.SaveSettings(domain.Settings{
		TrimmerPath: "  /opt/fastp ",
		WorkDir:     root + "/work",
		StorageRoot: root + "/storage",
		CacheDir:    root + "/cache",
	})
	if err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	if saved.TrimmerPath != "/opt/fastp" || saved.Threads != domain.DefaultThreads {
		t.Fatalf("saved = %+v", saved)
	}
	if store.saved != 1 {
		t.Fatalf("saves = %d, want 1", store.saved)
	}
	if app.Runner == nil {
		t.Fatal("expected runner to be built")
	}
	if len(app.GetDiagnostics().Items) == 0 {
		t.Fatal("expected diagnostics to be refreshed")
	}
}

// TestPresetLookup verifies the built-in test data plan.
func TestPresetLookup(t *testing.T) {
	app := &App{}
	plan, err := app.Preset("test data")
	if err != nil {
		t.Fatalf("Preset() error = %v", err)
	}
	if len(plan.PairedEnd) != 2 || plan.PairedEnd[1].Name != "SRR579292" {
		t.Fatalf("plan = %+v", plan)
	}
	if plan.AdapterFasta != "s3://latch-public/test-data/4318/sample_adapters.fa" {
		t.Fatalf("adapter = %s", plan.AdapterFasta)
	}
	if _, err := app.Preset("nope"); err == nil {
		t.Fatal("expected unknown preset error")
	}

	plans := app.Presets()
	plans[0].Name = "changed"
	if app.Presets()[0].Name != "Test Data" {
		t.Fatal("Presets() must return a copy")
	}
}

// assertEventTypeExists verifies at least one event of given type exists.
func assertEventTypeExists(t *testing.T, events []jobs.Event, want jobs.EventType) {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return
		}
	}
	t.Fatalf("event type %s not found", want)
}
