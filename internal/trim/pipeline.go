// Package trim builds and runs one fastp invocation per sample.
package trim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"fastp-batch/internal/domain"
	"fastp-batch/internal/notify"
	"fastp-batch/internal/storage"
)

// Job stages reported through Request.OnStage.
const (
	StageStaging    = "staging"
	StageTrimming   = "trimming"
	StagePublishing = "publishing"
)

// Request is one job execution with its observability hooks.
type Request struct {
	Job      domain.JobInput
	Notifier notify.Notifier
	OnStage  func(stage string)
	OnLine   func(line string)
}

// Result describes what one job produced. A non-zero exit is recorded here,
// not returned as an error.
type Result struct {
	Sample    string          `json:"sample"`
	ReadType  domain.ReadType `json:"readType"`
	Log       CommandLog      `json:"command"`
	Errors    []string        `json:"errors,omitempty"`
	Outputs   Outputs         `json:"-"`
	Artifacts []Artifact      `json:"artifacts,omitempty"`
	Missing   []string        `json:"missing,omitempty"`
	Report    *ReportSummary  `json:"report,omitempty"`
	Output    storage.DirRef  `json:"output"`
}

// Failed reports whether the trimmer exited non-zero.
func (r Result) Failed() bool {
	return r.Log.ExitCode != 0
}

// Partial reports whether some expected artifacts are missing or damaged.
func (r Result) Partial() bool {
	if len(r.Missing) > 0 {
		return true
	}
	for _, a := range r.Artifacts {
		if a.Problem != "" {
			return true
		}
	}
	return false
}

// CommandLog captures one trimmer invocation.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Output   string   `json:"output,omitempty"`
}

// String renders the command line.
func (l CommandLog) String() string {
	return strings.Join(append([]string{l.Command}, l.Args...), " ")
}

// PipelineError is a stage-aware error for failures that stop a job before
// the trimmer could report on its own.
type PipelineError struct {
	Stage      string     `json:"stage"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats pipeline failures for logs and notifications.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s", e.Stage, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Runner executes trimming jobs.
type Runner struct {
	trimmerPath string
	threads     int
	workDir     string
	runner      commandRunner
	resolver    storage.Resolver
	publisher   storage.Publisher
	mkdirAll    func(path string, perm os.FileMode) error
	stat        func(name string) (os.FileInfo, error)
}

// NewRunner constructs the production runner from settings.
func NewRunner(settings domain.Settings, resolver storage.Resolver, publisher storage.Publisher) *Runner {
	threads := settings.Threads
	if threads <= 0 {
		threads = domain.DefaultThreads
	}
	workDir := settings.WorkDir
	if strings.TrimSpace(workDir) == "" {
		workDir = domain.DefaultOutputDir
	}
	return &Runner{
		trimmerPath: settings.TrimmerPath,
		threads:     threads,
		workDir:     workDir,
		runner:      &execRunner{maxLine: MaxLineSize},
		resolver:    resolver,
		publisher:   publisher,
		mkdirAll:    os.MkdirAll,
		stat:        os.Stat,
	}
}

// Run executes one job. Tool failures are notified and recorded in Result;
// only failures that prevent the tool from running are returned as errors.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	job := req.Job
	n := req.Notifier
	if n == nil {
		n = notify.Discard
	}
	if err := job.Validate(); err != nil {
		return Result{}, &PipelineError{Stage: StageStaging, Message: "invalid job input", Err: err}
	}

	name := job.Name()
	readType := job.ReadType()
	result := Result{Sample: name, ReadType: readType}

	n.Notify(notify.LevelInfo, notify.Message{
		Title: "Set fastp mode",
		Body:  fmt.Sprintf("Running fastp in %s-end mode.", readType),
	})

	emitStage(req.OnStage, StageStaging)
	if err := r.mkdirAll(r.workDir, 0o755); err != nil {
		return result, &PipelineError{
			Stage:   StageStaging,
			Message: fmt.Sprintf("cannot create output directory: %s", r.workDir),
			Err:     err,
		}
	}

	local, err := r.stage(ctx, job, n)
	if err != nil {
		return result, err
	}

	out := OutputPaths(r.workDir, name, readType)
	result.Outputs = out
	args, autoDetect := BuildArgs(job, local, out, r.threads)
	if autoDetect {
		n.Notify(notify.LevelWarning, notify.Message{
			Title: "Automatic adapter removal option chosen",
			Body:  "Be aware that letting fastp automatically detect adapter sequences can lead to worse results.",
		})
	}

	log := CommandLog{Command: r.trimmerPath, Args: args}
	n.Notify(notify.LevelInfo, notify.Message{
		Title: fmt.Sprintf("Running fastp for input %s", name),
		Body:  fmt.Sprintf("Command: %s", log.String()),
	})

	emitStage(req.OnStage, StageTrimming)
	cmdResult, runErr := r.runner.Run(ctx, r.trimmerPath, args, req.OnLine)
	log.ExitCode = cmdResult.ExitCode
	log.Output = cmdResult.Output
	result.Log = log

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, &PipelineError{Stage: StageTrimming, Message: "fastp run cancelled", CommandLog: log, Err: ctxErr}
	}
	var exitErr *exec.ExitError
	exited := errors.As(runErr, &exitErr)
	switch {
	case runErr == nil:
	case !exited && log.ExitCode < 0:
		return result, &PipelineError{Stage: StageTrimming, Message: "fastp could not be run", CommandLog: log, Err: runErr}
	case log.ExitCode == 0:
		n.Notify(notify.LevelWarning, notify.Message{Title: "fastp output capture incomplete", Body: runErr.Error()})
	}

	if log.ExitCode != 0 {
		result.Errors = ScanErrors(log.Output)
		for _, line := range result.Errors {
			n.Notify(notify.LevelError, notify.Message{
				Title: fmt.Sprintf("An error was raised while running fastp for %s", name),
				Body:  line,
			})
		}
		if len(result.Errors) == 0 {
			body := fmt.Sprintf("fastp exited with status %d", log.ExitCode)
			if log.ExitCode < 0 && runErr != nil {
				body = fmt.Sprintf("fastp was terminated: %v", runErr)
			}
			n.Notify(notify.LevelError, notify.Message{
				Title: fmt.Sprintf("An error was raised while running fastp for %s", name),
				Body:  body,
			})
		}
	}

	present := r.collectArtifacts(&result, n)
	r.summarize(&result, n)

	emitStage(req.OnStage, StagePublishing)
	ref, err := r.publisher.Publish(ctx, r.workDir, path.Join(domain.DefaultOutputDir, name), present)
	if err != nil {
		return result, &PipelineError{Stage: StagePublishing, Message: "failed to publish outputs", CommandLog: log, Err: err}
	}
	result.Output = ref
	return result, nil
}

// stage resolves every input reference of job to a local path.
func (r *Runner) stage(ctx context.Context, job domain.JobInput, n notify.Notifier) (LocalFiles, error) {
	var local LocalFiles
	resolve := func(what string, ref domain.FileRef) (string, error) {
		p, err := r.resolver.Resolve(ctx, ref)
		if err != nil {
			return "", &PipelineError{
				Stage:   StageStaging,
				Message: fmt.Sprintf("cannot stage %s %s", what, ref),
				Err:     err,
			}
		}
		return p, nil
	}

	var err error
	switch s := job.Sample.(type) {
	case domain.SingleEnd:
		if local.Read1, err = resolve("read1", s.Read1); err != nil {
			return local, err
		}
	case domain.PairedEnd:
		if local.Read1, err = resolve("read1", s.Read1); err != nil {
			return local, err
		}
		if local.Read2, err = resolve("read2", s.Read2); err != nil {
			return local, err
		}
	}

	if fa, ok := job.AdapterOrAuto().(domain.FastaAdapter); ok {
		if local.AdapterFasta, err = resolve("adapter fasta", fa.File); err != nil {
			return local, err
		}
		count, countErr := CountAdapters(local.AdapterFasta)
		switch {
		case countErr != nil:
			n.Notify(notify.LevelWarning, notify.Message{Title: "Adapter FASTA could not be read", Body: countErr.Error()})
		case count == 0:
			n.Notify(notify.LevelWarning, notify.Message{
				Title: "Adapter FASTA is empty",
				Body:  fmt.Sprintf("%s contains no sequences; fastp will trim no adapters.", fa.File),
			})
		}
	}
	return local, nil
}

// collectArtifacts records every expected output and returns the ones on disk.
func (r *Runner) collectArtifacts(result *Result, n notify.Notifier) []string {
	present := make([]string, 0, 4)
	for _, file := range result.Outputs.Files() {
		art, err := inspectArtifact(file)
		if err != nil {
			result.Missing = append(result.Missing, filepath.Base(file))
			continue
		}
		result.Artifacts = append(result.Artifacts, art)
		present = append(present, file)
		if art.Problem != "" {
			n.Notify(notify.LevelWarning, notify.Message{
				Title: fmt.Sprintf("Output %s looks incomplete", filepath.Base(file)),
				Body:  art.Problem,
			})
		}
	}
	if len(result.Missing) > 0 {
		n.Notify(notify.LevelWarning, notify.Message{
			Title: fmt.Sprintf("Missing outputs for %s", result.Sample),
			Body:  strings.Join(result.Missing, ", "),
		})
	}
	return present
}

// summarize attaches the fastp JSON report summary when one was written.
func (r *Runner) summarize(result *Result, n notify.Notifier) {
	if _, err := r.stat(result.Outputs.JSON); err != nil {
		return
	}
	summary, err := ReadReport(result.Outputs.JSON)
	if err != nil {
		n.Notify(notify.LevelWarning, notify.Message{Title: "Unreadable fastp report", Body: err.Error()})
		return
	}
	result.Report = &summary
	if result.Failed() {
		return
	}
	n.Notify(notify.LevelInfo, notify.Message{
		Title: fmt.Sprintf("fastp finished for %s", result.Sample),
		Body: fmt.Sprintf("kept %d of %d reads (%.2f%%), adapters trimmed in %d reads",
			summary.ReadsAfter, summary.ReadsBefore, summary.PassRate()*100, summary.AdapterTrimmedReads),
	})
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(stage string), stage string) {
	if cb != nil {
		cb(stage)
	}
}

// NewRunnerForTests constructs a runner with injectable dependencies.
func NewRunnerForTests(
	trimmerPath string,
	workDir string,
	runner commandRunner,
	resolver storage.Resolver,
	publisher storage.Publisher,
) *Runner {
	return &Runner{
		trimmerPath: trimmerPath,
		threads:     domain.DefaultThreads,
		workDir:     workDir,
		runner:      runner,
		resolver:    resolver,
		publisher:   publisher,
		mkdirAll:    os.MkdirAll,
		stat:        os.Stat,
	}
}
