// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/internal/csync"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/observability"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/store"
)

const (
	// DefaultTimeout bounds one atomic body's wall-clock runtime.
	DefaultTimeout = 300 * time.Second

	// EnvTaskDir and EnvSessionID are exported into every subprocess.
	EnvTaskDir   = "WCA_TASK_DIR"
	EnvSessionID = "WCA_SESSION_ID"
)

// RunRecorder persists action run history. *store.Log satisfies it.
type RunRecorder interface {
	UpsertActionHistory(rec store.ActionHistory) error
}

// Request describes one action execution.
type Request struct {
	Action    *Action
	Input     map[string]any
	SessionID string
	// TaskDir is the subprocess working directory. Bodies must not
	// write outside it.
	TaskDir string
	// ParentID links sub-action runs to their divisible parent.
	ParentID string
}

// Result is the outcome of a finished run. Status is one of the
// store.RunStatus values; business failures are encoded in Output
// rather than as Go errors.
type Result struct {
	RunID  string
	Status string
	Output map[string]any
}

// Failed reports whether the run ended in error or cancellation.
func (r *Result) Failed() bool {
	return r.Status != store.RunStatusSuccess
}

type inflightRun struct {
	cancel context.CancelFunc
	rec    store.ActionHistory
}

// Executor runs actions: atomic bodies in sandboxed subprocesses,
// divisible actions as sequenced sub-runs, builtins through native
// handlers. Every run is upserted to history as running and again
// with its final status, so a crash leaves a running row behind as
// evidence. In-flight runs are tracked so Shutdown can finalize them
// as cancelled.
type Executor struct {
	registry *Registry
	recorder RunRecorder
	tracer   observability.Tracer
	logger   *zap.Logger
	timeout  time.Duration
	inflight *csync.Map[string, *inflightRun]
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTimeout overrides the per-action wall-clock bound.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithTracer attaches a tracer for spans and run metrics.
func WithTracer(t observability.Tracer) ExecutorOption {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithExecLogger sets the executor logger.
func WithExecLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an executor over the registry. recorder may be
// nil to disable history persistence (tests).
func NewExecutor(registry *Registry, recorder RunRecorder, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		recorder: recorder,
		tracer:   observability.NewNoOpTracer(),
		logger:   zap.NewNop(),
		timeout:  DefaultTimeout,
		inflight: csync.NewMap[string, *inflightRun](),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one action to completion and returns its result. The
// returned error covers pre-run failures only (unknown platform,
// schema violation); once a run starts, failures are reported through
// Result.Status and the output map so history stays authoritative.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.Action == nil {
		return nil, fmt.Errorf("execute: nil action")
	}
	if !req.Action.SupportsPlatform(runtime.GOOS) {
		return nil, fmt.Errorf("action %q does not support platform %s", req.Action.Name, runtime.GOOS)
	}
	action := req.Action.ForPlatform(runtime.GOOS)
	if err := ValidateInput(action, req.Input); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.StartSpan(ctx, "action.execute",
		observability.WithAttribute("action.name", action.Name),
		observability.WithAttribute("action.type", string(action.Type)))
	defer e.tracer.EndSpan(span)

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rec := store.ActionHistory{
		EntryType:  store.EntryActionHistory,
		RunID:      runID,
		SessionID:  req.SessionID,
		ParentID:   req.ParentID,
		Name:       action.Name,
		ActionType: string(action.Type),
		Type:       string(action.Type),
		Status:     store.RunStatusRunning,
		Inputs:     req.Input,
		StartedAt:  store.Stamp(time.Now()),
	}
	e.record(rec)
	e.inflight.Set(runID, &inflightRun{cancel: cancel, rec: rec})

	var (
		output map[string]any
		status string
	)
	switch {
	case action.Type == TypeDivisible:
		output, status = e.runDivisible(runCtx, action, req, runID)
	default:
		if h, ok := e.registry.Handler(action.Name); ok {
			output, status = e.runBuiltin(runCtx, h, req)
		} else {
			output, status = e.runAtomic(runCtx, action, req)
		}
	}

	if _, won := e.inflight.Take(runID); !won {
		// Shutdown finalized this run as cancelled while the body was
		// being torn down; its record is authoritative.
		return &Result{RunID: runID, Status: store.RunStatusCancelled, Output: cancelledOutput()}, nil
	}

	rec.Status = status
	rec.Outputs = output
	rec.EndedAt = store.Stamp(time.Now())
	e.record(rec)
	e.tracer.RecordMetric("action.runs", 1, map[string]string{
		"action": action.Name,
		"status": status,
	})
	e.logger.Debug("action finished",
		zap.String("action", action.Name),
		zap.String("run_id", runID),
		zap.String("status", status))
	return &Result{RunID: runID, Status: status, Output: output}, nil
}

// Shutdown cancels every in-flight run and records each as cancelled.
// Runs that finish concurrently keep whichever final row won the take.
func (e *Executor) Shutdown() {
	for _, runID := range e.inflight.Keys() {
		run, ok := e.inflight.Take(runID)
		if !ok {
			continue
		}
		run.cancel()
		rec := run.rec
		rec.Status = store.RunStatusCancelled
		rec.Outputs = cancelledOutput()
		rec.EndedAt = store.Stamp(time.Now())
		e.record(rec)
		e.logger.Info("cancelled in-flight action",
			zap.String("action", rec.Name),
			zap.String("run_id", runID))
	}
}

// InFlight reports the number of runs currently executing.
func (e *Executor) InFlight() int {
	return e.inflight.Len()
}

func (e *Executor) runAtomic(ctx context.Context, action *Action, req Request) (map[string]any, string) {
	if action.Body == "" {
		return map[string]any{"error": fmt.Sprintf("action %q has no body and no handler", action.Name)}, store.RunStatusError
	}
	bodyCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	stdout, stderr, code, runErr := e.runShell(bodyCtx, action.Body, marshalInput(req.Input), req)
	if ctx.Err() != nil {
		return cancelledOutput(), store.RunStatusCancelled
	}
	if runErr != nil {
		msg := runErr.Error()
		if errors.Is(bodyCtx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("action timed out after %s", e.timeout)
		}
		return map[string]any{
			"error":      msg,
			"stdout":     stdout,
			"stderr":     stderr,
			"returncode": code,
		}, store.RunStatusError
	}

	output := ParseOutput(stdout)
	status := store.RunStatusSuccess
	if action.Observer != nil && action.Observer.Code != "" {
		observation, ok := e.runObserver(ctx, action.Observer, output, req)
		output["observation"] = observation
		if !ok {
			status = store.RunStatusError
		}
	}
	return output, status
}

func (e *Executor) runBuiltin(ctx context.Context, h Handler, req Request) (map[string]any, string) {
	output, err := h(ctx, req.Input)
	if ctx.Err() != nil {
		return cancelledOutput(), store.RunStatusCancelled
	}
	if err != nil {
		return map[string]any{"error": err.Error()}, store.RunStatusError
	}
	if output == nil {
		output = map[string]any{}
	}
	return output, store.RunStatusSuccess
}

// runDivisible executes sub-actions in declared order, keying each
// output by sub-action name. The parent's input threads to every
// sub-action unless the input carries a map under the sub-action's
// name, which then overrides. The chain stops at the first non-success
// so later sub-actions never run on a broken premise.
func (e *Executor) runDivisible(ctx context.Context, action *Action, req Request, runID string) (map[string]any, string) {
	output := make(map[string]any, len(action.SubActions))
	for _, name := range action.SubActions {
		sub, err := e.registry.Get(name)
		if err != nil {
			output[name] = map[string]any{"error": err.Error()}
			return output, store.RunStatusError
		}
		subInput := req.Input
		if override, ok := req.Input[name].(map[string]any); ok {
			subInput = override
		}
		res, err := e.Execute(ctx, Request{
			Action:    sub,
			Input:     subInput,
			SessionID: req.SessionID,
			TaskDir:   req.TaskDir,
			ParentID:  runID,
		})
		if err != nil {
			output[name] = map[string]any{"error": err.Error()}
			return output, store.RunStatusError
		}
		output[name] = res.Output
		if res.Failed() {
			return output, res.Status
		}
	}
	return output, store.RunStatusSuccess
}

// runObserver retries the observer program per its policy: up to
// MaxRetries attempts, sleeping RetryIntervalSec between them, the
// whole loop bounded by MaxTotalTimeSec. An attempt fails on non-zero
// exit, unparseable output, or an explicit success=false.
func (e *Executor) runObserver(ctx context.Context, obs *Observer, actionOutput map[string]any, req Request) (map[string]any, bool) {
	attempts := obs.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	interval := time.Duration(obs.RetryIntervalSec * float64(time.Second))
	var deadline time.Time
	if obs.MaxTotalTimeSec > 0 {
		deadline = time.Now().Add(time.Duration(obs.MaxTotalTimeSec * float64(time.Second)))
	}
	payload := marshalInput(actionOutput)

	last := map[string]any{"success": false, "message": "observer did not run"}
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return map[string]any{"success": false, "message": "observer cancelled"}, false
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			last["message"] = fmt.Sprintf("observer exceeded %.0fs total budget", obs.MaxTotalTimeSec)
			break
		}
		observation, err := e.observeOnce(ctx, obs.Code, payload, req)
		if err == nil {
			if ok, _ := observation["success"].(bool); ok {
				return observation, true
			}
			last = observation
		} else {
			last = map[string]any{"success": false, "message": err.Error()}
		}
		e.logger.Debug("observer attempt failed",
			zap.Int("attempt", attempt),
			zap.Any("observation", last["message"]))
		if attempt < attempts && interval > 0 {
			select {
			case <-ctx.Done():
				return map[string]any{"success": false, "message": "observer cancelled"}, false
			case <-time.After(interval):
			}
		}
	}
	return last, false
}

func (e *Executor) observeOnce(ctx context.Context, code string, payload []byte, req Request) (map[string]any, error) {
	obsCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	stdout, stderr, code2, err := e.runShell(obsCtx, code, payload, req)
	if err != nil {
		return nil, fmt.Errorf("observer exited %d: %s", code2, firstNonEmpty(stderr, err.Error()))
	}
	observation := ParseOutput(stdout)
	if _, ok := observation["success"]; !ok {
		return nil, fmt.Errorf("observer printed no success field")
	}
	if _, ok := observation["message"]; !ok {
		observation["message"] = ""
	}
	return observation, nil
}

// runShell launches body under sh -c with stdin as the input payload,
// confined to the request's task dir.
func (e *Executor) runShell(ctx context.Context, body string, stdin []byte, req Request) (stdout, stderr string, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", body)
	if req.TaskDir != "" {
		cmd.Dir = req.TaskDir
	}
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Env = append(os.Environ(),
		EnvTaskDir+"="+req.TaskDir,
		EnvSessionID+"="+req.SessionID,
	)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	exitCode = 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	return outBuf.String(), errBuf.String(), exitCode, runErr
}

func (e *Executor) record(rec store.ActionHistory) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.UpsertActionHistory(rec); err != nil {
		e.logger.Warn("failed to persist action history",
			zap.String("run_id", rec.RunID),
			zap.Error(err))
	}
}

func cancelledOutput() map[string]any {
	return map[string]any{"error": "Action cancelled", "error_code": "cancelled"}
}

func marshalInput(input map[string]any) []byte {
	if input == nil {
		input = map[string]any{}
	}
	data, err := json.Marshal(input)
	if err != nil {
		return []byte("{}")
	}
	return data
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
