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

// Package agent is the reactive driver: it pulls triggers off the
// queue and, for each one, checks budgets, reasons, routes to an
// action, executes it, logs the lifecycle to the event stream, and
// reschedules a follow-up while the task is still running.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/internal/jsonx"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/actions"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/events"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/observability"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/router"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/tasks"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/types"
)

// DefaultReasonRetries is how many extra attempts a malformed reasoning
// reply gets before the trigger fails.
const DefaultReasonRetries = 3

// recoveryDelay spaces a recovery trigger out from the failure that
// caused it.
const recoveryDelay = 2 * time.Second

// Generator is the reasoning surface of the gateway.
type Generator interface {
	GenerateWithSession(ctx context.Context, taskID string, callType llm.CallType, user, systemForNew string) (llm.Result, error)
}

// Selector picks one action for a query. *router.Router satisfies it.
type Selector interface {
	Route(ctx context.Context, req router.Request) (*actions.Action, *router.Selection, error)
}

// ActionExecutor runs a chosen action. *actions.Executor satisfies it.
type ActionExecutor interface {
	Execute(ctx context.Context, req actions.Request) (*actions.Result, error)
}

// TaskController is the task-manager surface the loop drives.
// *tasks.Manager satisfies it.
type TaskController interface {
	Active() (types.Task, bool)
	IsRunning(taskID string) bool
	MarkCancel(ctx context.Context, message string) error
}

// TriggerSource delivers and accepts scheduled work. *triggers.Queue
// satisfies it.
type TriggerSource interface {
	Get(ctx context.Context) (types.Trigger, error)
	Put(ctx context.Context, trig types.Trigger)
}

// ScreenAnalyzer captures the screen and describes it for GUI-mode
// reasoning. The kernel ships no implementation; a nil analyzer skips
// the screen step.
type ScreenAnalyzer interface {
	Analyze(ctx context.Context) (string, error)
}

// Loop is the agent driver.
type Loop struct {
	queue    TriggerSource
	gateway  Generator
	selector Selector
	executor ActionExecutor
	tasks    TaskController
	events   *events.Manager
	props    *types.AgentProperties
	context  *ContextBuilder
	screen   ScreenAnalyzer
	tracer   observability.Tracer
	logger   *zap.Logger
	retries  int
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithScreenAnalyzer enables the GUI screen step.
func WithScreenAnalyzer(s ScreenAnalyzer) LoopOption {
	return func(l *Loop) { l.screen = s }
}

// WithTracer attaches a tracer.
func WithTracer(t observability.Tracer) LoopOption {
	return func(l *Loop) {
		if t != nil {
			l.tracer = t
		}
	}
}

// WithLogger sets the loop logger.
func WithLogger(lg *zap.Logger) LoopOption {
	return func(l *Loop) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// WithReasonRetries overrides the reasoning retry budget.
func WithReasonRetries(n int) LoopOption {
	return func(l *Loop) {
		if n >= 0 {
			l.retries = n
		}
	}
}

// NewLoop wires the driver.
func NewLoop(
	queue TriggerSource,
	gateway Generator,
	selector Selector,
	executor ActionExecutor,
	taskCtl TaskController,
	ev *events.Manager,
	props *types.AgentProperties,
	cb *ContextBuilder,
	opts ...LoopOption,
) *Loop {
	l := &Loop{
		queue:    queue,
		gateway:  gateway,
		selector: selector,
		executor: executor,
		tasks:    taskCtl,
		events:   ev,
		props:    props,
		context:  cb,
		tracer:   observability.NewNoOpTracer(),
		logger:   zap.NewNop(),
		retries:  DefaultReasonRetries,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run pulls triggers until ctx is cancelled. A failing reaction never
// stops the loop; failures are logged to the session's event stream and
// recovered through follow-up triggers.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("agent loop started")
	for {
		trig, err := l.queue.Get(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				l.logger.Info("agent loop stopped")
				return nil
			}
			return fmt.Errorf("trigger queue: %w", err)
		}
		l.React(ctx, trig)
	}
}

// React handles one trigger end to end.
func (l *Loop) React(ctx context.Context, trig types.Trigger) {
	ctx, span := l.tracer.StartSpan(ctx, "agent.react",
		observability.WithAttribute("session", trig.SessionID),
		observability.WithAttribute("priority", fmt.Sprintf("%d", trig.Priority)))
	defer l.tracer.EndSpan(span)

	sessionID := trig.SessionID
	stream := l.events.GetOrCreate(sessionID)
	task, running := l.runningTask(sessionID)
	guiMode := trig.GUIMode()

	if running {
		l.props.SetCurrent(task.ID, currentStepIndex(&task))
	}

	if guiMode && l.screen != nil {
		l.analyzeScreen(ctx, stream)
	}

	if running && l.enforceBudgets(ctx, stream) {
		return
	}

	act, sel, err := l.choose(ctx, &task, running, trig, stream, guiMode)
	if err != nil {
		l.recover(ctx, stream, trig, running, err)
		return
	}

	result := l.execute(ctx, act, sel, trig, &task, running, stream)
	if result == nil {
		return
	}

	l.reschedule(ctx, trig, result, guiMode)
}

// choose runs steps 5-7: reason when a task is running, then route the
// query to one concrete action.
func (l *Loop) choose(ctx context.Context, task *types.Task, running bool, trig types.Trigger, stream *events.Stream, guiMode bool) (*actions.Action, *router.Selection, error) {
	if !running {
		query := l.context.ConversationQuery(trig.NextActionDescription, stream.PromptSnapshot(true))
		return l.selector.Route(ctx, router.Request{
			Mode:      router.ModeConversation,
			SessionID: trig.SessionID,
			Query:     query,
		})
	}

	thought, err := l.reason(ctx, task, trig, stream, guiMode)
	if err != nil {
		return nil, nil, fmt.Errorf("reasoning: %w", err)
	}
	stream.Log(types.EventReasoning, thought.Reasoning)

	mode := router.ModeTaskCLI
	switch {
	case guiMode:
		mode = router.ModeTaskGUI
	case trig.SimpleMode():
		mode = router.ModeSimpleTask
	}
	return l.selector.Route(ctx, router.Request{
		Mode:      mode,
		SessionID: trig.SessionID,
		Query:     thought.ActionQuery,
	})
}

// thought is the reasoning call's parsed reply.
type thought struct {
	Reasoning   string `json:"reasoning"`
	ActionQuery string `json:"action_query"`
}

// reason asks the task's reasoning session what to do next, re-asking
// with parser feedback on schema violations.
func (l *Loop) reason(ctx context.Context, task *types.Task, trig types.Trigger, stream *events.Stream, guiMode bool) (*thought, error) {
	callType := llm.CallReasoning
	if guiMode {
		callType = llm.CallGUIReasoning
	}
	system := l.context.TaskSystemPrompt(ctx, task)
	user := l.context.ReasoningUserPrompt(ctx, task, trig.NextActionDescription, stream.PromptSnapshot(true))

	prompt := user
	var lastErr error
	for attempt := 0; attempt <= l.retries; attempt++ {
		res, err := l.gateway.GenerateWithSession(ctx, task.ID, callType, prompt, system)
		if err != nil {
			return nil, err
		}
		var th thought
		decodeErr := jsonx.Decode(res.Content, &th)
		if decodeErr == nil && strings.TrimSpace(th.ActionQuery) == "" {
			decodeErr = fmt.Errorf("reply has no action_query")
		}
		if decodeErr == nil {
			return &th, nil
		}
		lastErr = decodeErr
		l.logger.Warn("reasoning reply malformed",
			zap.String("task_id", task.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(decodeErr))
		prompt = user + "\n\n" + jsonx.ParseFeedback(res.Content, decodeErr)
	}
	return nil, fmt.Errorf("unparseable after %d attempts: %w", l.retries+1, lastErr)
}

// execute runs steps 7-9: validate and run the action, count it, and
// log both lifecycle events. A nil return means the reaction ended
// here (pre-run failure already handled).
func (l *Loop) execute(ctx context.Context, act *actions.Action, sel *router.Selection, trig types.Trigger, task *types.Task, running bool, stream *events.Stream) *actions.Result {
	taskDir := ""
	if running {
		taskDir = task.TempDir
	}

	stream.Log(types.EventActionStart,
		fmt.Sprintf("%s %s", act.Name, compactJSON(sel.Parameters)),
		events.WithAction(act.Name),
		events.WithDisplay("Running: "+act.Name))

	runCtx := actions.WithSession(ctx, trig.SessionID)
	result, err := l.executor.Execute(runCtx, actions.Request{
		Action:    act,
		Input:     sel.Parameters,
		SessionID: trig.SessionID,
		TaskDir:   taskDir,
		ParentID:  trig.ParentActionID(),
	})
	l.props.AddActions(1)
	if err != nil {
		stream.Log(types.EventActionEnd,
			fmt.Sprintf("%s rejected: %v", act.Name, err),
			events.WithAction(act.Name),
			events.WithSeverity(types.SeverityError))
		l.recover(ctx, stream, trig, l.tasks.IsRunning(trig.SessionID), err)
		return nil
	}

	sev := types.SeverityInfo
	if result.Failed() {
		sev = types.SeverityWarn
	}
	stream.Log(types.EventActionEnd,
		fmt.Sprintf("%s (%s): %s", act.Name, result.Status, compactJSON(result.Output)),
		events.WithAction(act.Name),
		events.WithSeverity(sev),
		events.WithDisplay("Finished: "+act.Name))
	return result
}

// reschedule enqueues the follow-up trigger while the task is still
// running, honoring the action's fire_at_delay.
func (l *Loop) reschedule(ctx context.Context, trig types.Trigger, result *actions.Result, guiMode bool) {
	if !l.tasks.IsRunning(trig.SessionID) {
		return
	}
	delay, _ := actions.FireAtDelay(result.Output)
	fireAt := time.Now().Add(time.Duration(delay * float64(time.Second)))

	next := types.NewTrigger(trig.SessionID,
		"Continue the task: check the last action's outcome against the current step and decide the next action.",
		fireAt, tasks.PriorityFollowUp)
	next.Payload = map[string]any{types.PayloadParentActionID: result.RunID}
	if guiMode {
		next.Payload[types.PayloadGUIMode] = true
	}
	if trig.SimpleMode() {
		next.Payload[types.PayloadSimpleTask] = true
	}
	l.queue.Put(ctx, next)
}

// enforceBudgets implements step 4: warn at 80% of either budget,
// cancel the task at 100%. Returns true when the reaction must stop.
func (l *Loop) enforceBudgets(ctx context.Context, stream *events.Stream) bool {
	actionRatio := l.props.ActionBudgetRatio()
	tokenRatio := l.props.TokenBudgetRatio()

	if actionRatio >= 1 || tokenRatio >= 1 {
		which := "action"
		if tokenRatio >= 1 && tokenRatio >= actionRatio {
			which = "token"
		}
		msg := fmt.Sprintf("Task reached 100%% of its %s budget and is being cancelled.", which)
		stream.Log(types.EventWarning, msg, events.WithDisplay(msg))
		if err := l.tasks.MarkCancel(ctx, msg); err != nil {
			l.logger.Error("budget cancellation failed", zap.Error(err))
		}
		l.tracer.RecordMetric("loop.budget_cancellations", 1, map[string]string{"budget": which})
		return true
	}

	if actionRatio >= 0.8 {
		stream.Log(types.EventWarning, "Task passed 80% of its action budget.")
	}
	if tokenRatio >= 0.8 {
		stream.Log(types.EventWarning, "Task passed 80% of its token budget.")
	}
	return false
}

func (l *Loop) analyzeScreen(ctx context.Context, stream *events.Stream) {
	desc, err := l.screen.Analyze(ctx)
	if err != nil {
		stream.Log(types.EventWarning, "screen analysis failed: "+err.Error())
		return
	}
	stream.Log(types.EventScreen, desc)
}

// recover logs the failure and, when a task is running, enqueues a
// follow-up trigger so the task can attempt recovery. A request for a
// new action is not a failure; it is logged as a warning so the model
// sees that the capability is missing.
func (l *Loop) recover(ctx context.Context, stream *events.Stream, trig types.Trigger, running bool, cause error) {
	if na, ok := router.IsNewAction(cause); ok {
		stream.Log(types.EventWarning,
			fmt.Sprintf("No registered action fits %q. Work around it with the available actions.", na.Query))
	} else {
		stream.Log(types.EventError, cause.Error(),
			events.WithDisplay("Something went wrong; retrying."))
	}
	l.logger.Warn("reaction failed",
		zap.String("session", trig.SessionID),
		zap.Error(cause))

	if !running || !l.tasks.IsRunning(trig.SessionID) {
		return
	}
	next := types.NewTrigger(trig.SessionID,
		"Recover from the last error: review the event stream and choose the next action.",
		time.Now().Add(recoveryDelay), tasks.PriorityFollowUp)
	if trig.GUIMode() {
		next.Payload = map[string]any{types.PayloadGUIMode: true}
	}
	l.queue.Put(ctx, next)
}

func (l *Loop) runningTask(sessionID string) (types.Task, bool) {
	task, ok := l.tasks.Active()
	if !ok || task.ID != sessionID || task.Status != types.TaskRunning {
		return types.Task{}, false
	}
	return task, true
}

func currentStepIndex(task *types.Task) int {
	if step := task.CurrentStep(); step != nil {
		return step.StepIndex
	}
	return -1
}

// compactJSON renders a map for event messages. Oversized payloads are
// fine; the stream externalizes them.
func compactJSON(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("%v", m)
	}
	return string(data)
}
