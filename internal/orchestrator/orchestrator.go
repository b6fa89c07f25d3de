// Package orchestrator drives the generate-validate-repair-compile pipeline
// for one lesson at a time. It owns the state machine (queued -> generating ->
// generated | failed), the attempt budget, and the ordering guarantees: trace
// records are appended once per attempt in attempt order, content is persisted
// before the terminal status, and the status row is always the last write.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lessonforge/internal/compiler"
	"lessonforge/internal/generation"
	"lessonforge/internal/logging"
	"lessonforge/internal/repair"
	"lessonforge/internal/safety"
	"lessonforge/internal/store"
)

// DefaultMaxAttempts is the attempt budget when the caller does not set one.
const DefaultMaxAttempts = 3

// Repository is the persistence surface the orchestrator needs. *store.Store
// satisfies it.
type Repository interface {
	ClaimLesson(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status store.Status, failureReason string) error
	SaveContentVersion(ctx context.Context, lessonID, sourceText, moduleText, integrityHash string) (int, error)
	AppendTrace(ctx context.Context, rec store.TraceRecord) error
}

// Request is one generation run's input.
type Request struct {
	LessonID string
	Topic    string
	Pedagogy generation.Pedagogy
}

// Result is the terminal outcome of a run.
type Result struct {
	Success       bool
	AttemptCount  int
	Version       int
	Issues        []safety.Issue
	FailureReason string
}

// Options tune a single orchestrator instance.
type Options struct {
	MaxAttempts int
	WallClock   time.Duration
}

// Orchestrator coordinates one lesson generation run end to end. Safe for
// concurrent use; all run state is local to Run.
type Orchestrator struct {
	client      generation.LLMClient
	repo        Repository
	maxAttempts int
	wallClock   time.Duration
}

// New builds an orchestrator. Zero option fields get defaults.
func New(client generation.LLMClient, repo Repository, opts Options) *Orchestrator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Orchestrator{
		client:      client,
		repo:        repo,
		maxAttempts: opts.MaxAttempts,
		wallClock:   opts.WallClock,
	}
}

// Run executes the full pipeline for one lesson. It first claims the lesson
// (queued -> generating); if the lesson is not queued the run is a no-op and
// returns store.ErrNotQueued. The terminal status write happens exactly once,
// after every other write for the run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	log := logging.Get(logging.CategoryGeneration)

	if o.wallClock > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.wallClock)
		defer cancel()
	}

	if err := o.repo.ClaimLesson(ctx, req.LessonID); err != nil {
		if errors.Is(err, store.ErrNotQueued) {
			log.Infow("lesson not claimable, skipping", "lesson", req.LessonID)
		}
		return nil, err
	}

	log.Infow("generation started", "lesson", req.LessonID, "topic", req.Topic, "max_attempts", o.maxAttempts)

	var prev *Attempt
	for number := 1; number <= o.maxAttempts; number++ {
		attempt := o.runAttempt(ctx, req, number, prev)

		if err := o.repo.AppendTrace(ctx, traceFor(req.LessonID, attempt)); err != nil {
			// The trace is the audit trail; losing it aborts the run rather
			// than continuing unrecorded.
			return o.fail(ctx, req.LessonID, number, fmt.Sprintf("trace write failed: %v", err))
		}

		if attempt.Outcome == OutcomeSucceeded {
			version, err := o.repo.SaveContentVersion(ctx, req.LessonID,
				attempt.RawSource, attempt.Artifact.ModuleText, attempt.Artifact.SourceHash)
			if err != nil {
				return o.fail(ctx, req.LessonID, number, fmt.Sprintf("persist content: %v", err))
			}
			if err := o.repo.SetStatus(ctx, req.LessonID, store.StatusGenerated, ""); err != nil {
				return nil, err
			}
			log.Infow("generation succeeded", "lesson", req.LessonID, "attempt", number, "version", version)
			return &Result{Success: true, AttemptCount: number, Version: version}, nil
		}

		log.Warnw("attempt failed", "lesson", req.LessonID, "attempt", number,
			"class", attempt.failureClass(), "errors", len(attempt.Errors))

		// A dead context means the wall-clock ceiling (or caller cancel) hit;
		// further attempts cannot complete.
		if ctx.Err() != nil {
			return o.fail(ctx, req.LessonID, number, "wall clock exceeded: "+ctx.Err().Error())
		}
		prev = attempt
	}

	reason := "attempt budget exhausted"
	if prev != nil {
		switch {
		case len(prev.SafetyIssues) > 0:
			reason = fmt.Sprintf("attempt budget exhausted: %v", &SafetyViolationError{Issues: prev.SafetyIssues})
		case len(prev.Errors) > 0:
			reason = "attempt budget exhausted; last error: " + prev.Errors[0]
		}
	}
	res, err := o.fail(ctx, req.LessonID, o.maxAttempts, reason)
	if res != nil && prev != nil {
		res.Issues = prev.SafetyIssues
	}
	return res, err
}

// runAttempt executes one generate -> lint -> compile cycle, with a single
// deterministic repair re-entry on compile failure. It never persists
// anything; the caller owns all writes.
func (o *Orchestrator) runAttempt(ctx context.Context, req Request, number int, prev *Attempt) *Attempt {
	attempt := &Attempt{Number: number}

	// A fix-request needs a previous source to fix. If the prior attempt
	// died in the generation capability itself there is nothing to correct,
	// so the retry asks the original question again.
	fixRequest := prev != nil && prev.RawSource != ""
	if fixRequest {
		attempt.prompt = generation.BuildFixPrompt(prev.RawSource, prev.Errors)
	} else {
		attempt.prompt = generation.BuildComponentPrompt(req.Topic, req.Pedagogy)
	}

	response, err := o.client.CompleteWithSystem(ctx, generation.SystemPrompt(fixRequest), attempt.prompt)
	if err != nil {
		genErr := &GenerationError{Attempt: number, Err: err}
		attempt.Errors = []string{genErr.Error()}
		attempt.Outcome = OutcomeFailed
		return attempt
	}
	attempt.response = response
	attempt.RawSource = generation.ExtractCodeBlock(response)

	if issues := safety.Check(attempt.RawSource); len(issues) > 0 {
		attempt.SafetyIssues = issues
		attempt.Errors = issueMessages(issues)
		attempt.Outcome = OutcomeFailed
		return attempt
	}

	artifact, err := compiler.Compile(attempt.RawSource)
	if err == nil {
		attempt.Artifact = artifact
		attempt.Outcome = OutcomeSucceeded
		return attempt
	}
	attempt.Errors = compiler.Diagnostics(err)

	// One repair re-entry per attempt. The repaired text restarts at the
	// safety gate so repair can never smuggle source past the lint.
	repaired := repair.Repair(attempt.RawSource, repair.Diagnostics{Errors: attempt.Errors})
	if !repaired.Changed(attempt.RawSource) {
		logging.Get(logging.CategoryRepair).Debugw("escalating to fix-request",
			"attempt", number, "reason", ErrRepairExhausted)
		attempt.Outcome = OutcomeFailed
		return attempt
	}

	if issues := safety.Check(repaired.Source); len(issues) > 0 {
		attempt.SafetyIssues = issues
		attempt.Errors = issueMessages(issues)
		attempt.Outcome = OutcomeFailed
		return attempt
	}

	artifact, err = compiler.Compile(repaired.Source)
	if err != nil {
		attempt.Errors = append(attempt.Errors, compiler.Diagnostics(err)...)
		attempt.Outcome = OutcomeFailed
		return attempt
	}

	attempt.RawSource = repaired.Source
	attempt.RepairApplied = repaired.Applied
	attempt.Artifact = artifact
	attempt.Outcome = OutcomeSucceeded
	return attempt
}

// fail writes the terminal failed status as the run's last write.
func (o *Orchestrator) fail(ctx context.Context, lessonID string, attempts int, reason string) (*Result, error) {
	// Status must land even when the run context is already dead.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}
	if err := o.repo.SetStatus(ctx, lessonID, store.StatusFailed, reason); err != nil {
		return nil, err
	}
	logging.Get(logging.CategoryGeneration).Warnw("generation failed", "lesson", lessonID, "reason", reason)
	return &Result{Success: false, AttemptCount: attempts, FailureReason: reason}, nil
}

// traceFor maps an attempt onto its audit record.
func traceFor(lessonID string, a *Attempt) store.TraceRecord {
	rec := store.TraceRecord{
		LessonID:      lessonID,
		Attempt:       a.Number,
		Prompt:        a.prompt,
		Response:      a.response,
		SafetyIssues:  encodeIssues(a.SafetyIssues),
		RepairApplied: joinRules(a.RepairApplied),
	}
	if a.Outcome == OutcomeSucceeded {
		rec.Outcome = "succeeded"
	} else {
		rec.Outcome = a.failureClass()
		if len(a.SafetyIssues) == 0 && len(a.Errors) > 0 {
			rec.CompileError = strings.Join(a.Errors, "; ")
		}
	}
	return rec
}
