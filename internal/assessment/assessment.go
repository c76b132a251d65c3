// internal/assessment/assessment.go
// Package assessment drives a full ethics run: rate-limit gate, question
// fetch, the one-question-at-a-time vendor loop with crash recovery, and
// final submission for scoring.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spar65/aiassessmenttool/internal/appconfig"
	"github.com/spar65/aiassessmenttool/internal/extract"
	"github.com/spar65/aiassessmenttool/internal/logging"
	"github.com/spar65/aiassessmenttool/internal/platform"
	"github.com/spar65/aiassessmenttool/internal/providers"
	"github.com/spar65/aiassessmenttool/internal/recovery"
	"github.com/spar65/aiassessmenttool/internal/util"
	"github.com/spar65/aiassessmenttool/internal/window"
)

// State is the lifecycle phase of a run.
type State string

const (
	StateIdle              State = "idle"
	StateCheckingRateLimit State = "checking-rate-limit"
	StateRunning           State = "running"
	StateCompleted         State = "completed"
	StateError             State = "error"
	StateCancelled         State = "cancelled"
	StateRateLimited       State = "rate-limited"
)

// Progress is a point-in-time view of a running assessment, emitted after
// every answered question.
type Progress struct {
	Current            int
	Total              int
	Percentage         float64
	Dimension          string
	Elapsed            time.Duration
	EstimatedRemaining time.Duration
}

// Outcome is the result of a completed run.
type Outcome struct {
	Report     platform.ScoreReport
	Answered   int
	Unresolved int
	Resumed    bool
}

// RateLimitError means the shared demo tier has no capacity left. The run
// never started; nothing was consumed.
type RateLimitError struct {
	Status platform.RateLimitStatus
}

func (e *RateLimitError) Error() string {
	if e.Status.Limit == 0 {
		return "demo tier exhausted"
	}
	return fmt.Sprintf("demo tier exhausted: %d/%d runs used, resets at %s",
		e.Status.Limit-e.Status.Remaining, e.Status.Limit, e.Status.ResetAt.Format(time.RFC3339))
}

// PlatformClient is the subset of the platform API the runner needs.
type PlatformClient interface {
	CheckRateLimit(ctx context.Context) (platform.RateLimitStatus, error)
	FetchQuestionSet(ctx context.Context) (platform.QuestionSet, error)
	SubmitAnswers(ctx context.Context, responses []platform.Response, mappingToken string) (platform.ScoreReport, error)
}

// Runner executes one assessment against one configured provider. A Runner
// is single-use: create a fresh one per run.
type Runner struct {
	cfg      *appconfig.Config
	provider providers.ChatProvider
	platform PlatformClient
	store    *recovery.Store
	window   *window.Manager

	onProgress func(Progress)
	// resumeDecider is asked whether to continue from a found snapshot.
	// Defaults to always resuming; the TUI installs a prompt.
	resumeDecider func(recovery.Snapshot) bool

	mu    sync.Mutex
	state State
}

// NewRunner wires a runner from its collaborators.
func NewRunner(cfg *appconfig.Config, provider providers.ChatProvider, client PlatformClient, store *recovery.Store) *Runner {
	return &Runner{
		cfg:           cfg,
		provider:      provider,
		platform:      client,
		store:         store,
		window:        window.NewManager(cfg.WindowSize()),
		resumeDecider: func(recovery.Snapshot) bool { return true },
		state:         StateIdle,
	}
}

// OnProgress registers a callback invoked after every answered question.
func (r *Runner) OnProgress(fn func(Progress)) { r.onProgress = fn }

// OnResume registers the resume-or-discard decision for a found snapshot.
func (r *Runner) OnResume(fn func(recovery.Snapshot) bool) {
	if fn != nil {
		r.resumeDecider = fn
	}
}

// State reports the runner's current lifecycle phase.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	logging.LogEvent("assessment state: %s", s)
}

// Run executes the assessment end to end. It returns when the run reaches a
// terminal state; the error is nil only for StateCompleted.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	r.setState(StateCheckingRateLimit)

	status, err := r.platform.CheckRateLimit(ctx)
	if err != nil {
		var platformErr *platform.Error
		if errors.As(err, &platformErr) && platformErr.Code == platform.CodeTierExhausted {
			r.setState(StateRateLimited)
			return nil, &RateLimitError{}
		}
		r.setState(StateError)
		return nil, err
	}
	if !status.CanProceed {
		r.setState(StateRateLimited)
		return nil, &RateLimitError{Status: status}
	}

	set, err := r.platform.FetchQuestionSet(ctx)
	if err != nil {
		r.setState(StateError)
		return nil, err
	}

	results, resumed, err := r.loadSnapshot(len(set.Questions))
	if err != nil {
		r.setState(StateError)
		return nil, err
	}

	r.setState(StateRunning)

	runCtx, cancelRun := context.WithTimeout(ctx, r.cfg.RunTimeout())
	defer cancelRun()

	start := time.Now()
	unresolved := 0
	for _, res := range results {
		if !isChoice(res.Answer) {
			unresolved++
		}
	}

	for i := len(results); i < len(set.Questions); i++ {
		if err := runCtx.Err(); err != nil {
			return nil, r.finishEarly(err)
		}

		question := set.Questions[i]
		prompt := formatQuestion(question)

		result, err := r.ask(runCtx, prompt)
		if err != nil {
			return nil, r.finishEarly(err)
		}

		if r.cfg.ConversationalMode {
			r.window.Append(prompt, result.Answer)
		}
		if !result.Resolved {
			unresolved++
			logging.LogEvent("question %d unresolved: %s", i+1, util.TruncateRunes(result.Raw, 200))
		}

		results = append(results, recovery.PartialResult{
			QuestionIndex: i,
			QuestionID:    question.ID,
			Question:      prompt,
			Answer:        result.Answer,
			Dimension:     question.Dimension,
			Timestamp:     time.Now().UTC(),
		})
		if err := r.store.Save(r.window.Log(), results); err != nil {
			logging.LogEvent("recovery save failed: %v", err)
		}

		r.emitProgress(i+1, len(set.Questions), question.Dimension, time.Since(start))
	}

	responses := make([]platform.Response, 0, len(results))
	for _, res := range results {
		responses = append(responses, platform.Response{
			QuestionID: res.QuestionID,
			Answer:     res.Answer,
			Dimension:  res.Dimension,
		})
	}

	report, err := r.platform.SubmitAnswers(ctx, responses, set.MappingToken)
	if err != nil {
		// Answers stay persisted: a retried run resumes at submission, not
		// at question one.
		r.setState(StateError)
		return nil, err
	}

	if err := r.store.Clear(); err != nil {
		logging.LogEvent("clearing recovery state failed: %v", err)
	}
	r.setState(StateCompleted)

	return &Outcome{
		Report:     report,
		Answered:   len(results),
		Unresolved: unresolved,
		Resumed:    resumed,
	}, nil
}

// ask sends one question through the configured conversation mode, bounded
// by the per-question deadline.
func (r *Runner) ask(ctx context.Context, prompt string) (providers.CallResult, error) {
	qctx, cancel := context.WithTimeout(ctx, r.cfg.QuestionTimeout())
	defer cancel()

	if r.cfg.ConversationalMode {
		return r.provider.SendWindowed(qctx, r.window.Windowed(prompt))
	}
	return r.provider.SendIsolated(qctx, prompt)
}

// loadSnapshot applies resume-or-discard to any persisted partial run.
func (r *Runner) loadSnapshot(total int) ([]recovery.PartialResult, bool, error) {
	snapshot, found, err := r.store.Load()
	if err != nil {
		return nil, false, fmt.Errorf("loading recovery state: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	if !snapshotUsable(snapshot, total) || !r.resumeDecider(snapshot) {
		if err := r.store.Clear(); err != nil {
			return nil, false, fmt.Errorf("discarding recovery state: %w", err)
		}
		return nil, false, nil
	}

	r.window.Restore(snapshot.History)
	logging.LogEvent("resuming run at question %d of %d", len(snapshot.Results)+1, total)
	return snapshot.Results, true, nil
}

// Resumable reports whether a saved snapshot can seed a run: at least one
// result, with indices contiguous from zero. Callers that prompt before a
// run should check this first so the user is never asked about a snapshot
// that would be discarded anyway.
func Resumable(snapshot recovery.Snapshot) bool {
	if len(snapshot.Results) == 0 {
		return false
	}
	for i, res := range snapshot.Results {
		if res.QuestionIndex != i {
			return false
		}
	}
	return true
}

// snapshotUsable additionally bounds the snapshot against the fetched
// question set. Anything else is stale and gets discarded.
func snapshotUsable(snapshot recovery.Snapshot, total int) bool {
	return Resumable(snapshot) && len(snapshot.Results) < total
}

// finishEarly maps a loop failure to its terminal state. The recovery
// snapshot is left in place so the run can resume.
func (r *Runner) finishEarly(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		r.setState(StateCancelled)
		return context.Canceled
	case providers.IsRateLimited(err):
		r.setState(StateRateLimited)
	default:
		r.setState(StateError)
	}
	return err
}

func (r *Runner) emitProgress(current, total int, dimension string, elapsed time.Duration) {
	if r.onProgress == nil {
		return
	}
	progress := Progress{
		Current:    current,
		Total:      total,
		Percentage: float64(current) / float64(total) * 100,
		Dimension:  dimension,
		Elapsed:    elapsed,
	}
	if current > 0 {
		perQuestion := elapsed / time.Duration(current)
		progress.EstimatedRemaining = perQuestion * time.Duration(total-current)
	}
	r.onProgress(progress)
}

func isChoice(answer string) bool {
	for _, c := range extract.Choices {
		if answer == c {
			return true
		}
	}
	return false
}

// formatQuestion renders one question the way the model sees it: the text
// followed by lettered options.
func formatQuestion(q platform.Question) string {
	var b strings.Builder
	b.WriteString(q.Text)
	for i, option := range q.Options {
		if i >= len(extract.Choices) {
			break
		}
		b.WriteString("\n")
		b.WriteString(extract.Choices[i])
		b.WriteString(") ")
		b.WriteString(option)
	}
	return b.String()
}
