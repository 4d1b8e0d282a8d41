// Package jobs runs the budget-gated content pipelines: post generation,
// improvement and analysis, reel and video analysis, and infographics. Each job streams progress to
// one subscriber and writes one summarizing cost entry for its billed calls.
package jobs

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/postwright/postwright/pkg/budget"
	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/logger"
	"github.com/postwright/postwright/pkg/metrics"
	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/progress"
	"github.com/postwright/postwright/pkg/providers"
	"github.com/postwright/postwright/pkg/render"
	"github.com/postwright/postwright/pkg/store"
)

// Budget gates jobs and records their spend.
type Budget interface {
	CanAfford(ctx context.Context, estimate decimal.Decimal) (models.BudgetDecision, error)
	Record(ctx context.Context, entry models.CostEntry) (int64, error)
	Reserving() bool
	Reserve(ctx context.Context, estimate decimal.Decimal) (budget.Reservation, models.BudgetDecision, error)
	Commit(ctx context.Context, id string, entry models.CostEntry) (int64, error)
	Release(ctx context.Context, id string) error
}

// Journal records job outcomes.
type Journal interface {
	Log(ctx context.Context, entry models.ProcessingLog) error
}

// Deps are the collaborators of a Runner. Journal, Tracker, Metrics, Log
// and Styles may be left nil.
type Deps struct {
	Budget    Budget
	Artifacts store.Artifacts
	Files     store.Files
	Journal   Journal
	Providers *providers.Set
	Pricing   *providers.Pricing
	Styles    render.StyleSelector
	Tracker   errors.Tracker
	Metrics   *metrics.Metrics
	Log       *logger.Logger
	// Timeout bounds a job after its subscriber is gone. Zero means five
	// minutes.
	Timeout time.Duration
	Now     func() time.Time
}

// Runner starts jobs and tracks them until they finish.
type Runner struct {
	Deps
	wg sync.WaitGroup
}

// New creates a Runner, filling optional dependencies with no-ops.
func New(d Deps) *Runner {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Tracker == nil {
		d.Tracker = errors.NoopTracker{}
	}
	if d.Styles == nil {
		d.Styles = render.KeywordSelector{}
	}
	if d.Timeout <= 0 {
		d.Timeout = 5 * time.Minute
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Providers == nil {
		d.Providers = &providers.Set{}
	}
	return &Runner{Deps: d}
}

// plan fixes the identity and early progress values of a job kind.
type plan struct {
	kind       models.JobKind
	process    models.ProcessType
	operation  string
	estimateAt int
	// estimatedAt, when set, emits a second estimate event.
	estimatedAt int
	budgetAt    int
}

var (
	textPlan = plan{
		kind: models.JobTextGeneration, process: models.ProcessAIPost, operation: "generate_post",
		estimateAt: 10, estimatedAt: 15, budgetAt: 30,
	}
	reelPlan = plan{
		kind: models.JobReelAnalysis, process: models.ProcessReelAnalysis, operation: "reel_analysis",
		estimateAt: 5, budgetAt: 10,
	}
	infographicPlan = plan{
		kind: models.JobInfographic, process: models.ProcessInfographic, operation: "infographic",
		estimateAt: 10, budgetAt: 20,
	}
	improvePlan = plan{
		kind: models.JobImprove, process: models.ProcessAIPost, operation: "improve_text",
		estimateAt: 10, budgetAt: 20,
	}
	analyzePlan = plan{
		kind: models.JobPostAnalysis, process: models.ProcessPostAnalysis, operation: "analyze_post",
		estimateAt: 10, budgetAt: 20,
	}
	uploadPlan = plan{
		kind: models.JobVideoUpload, process: models.ProcessReelAnalysis, operation: "whisper_transcription",
		estimateAt: 5, budgetAt: 10,
	}
)

// call is one billed provider call.
type call struct {
	service   models.Service
	operation string
	provider  string
	model     string
	cost      decimal.Decimal
	tokens    int
}

// job is the execution state of one request.
type job struct {
	id      string
	plan    plan
	rep     *progress.Reporter
	started time.Time
	calls   []call
	temp    []string
	res     *budget.Reservation
	settled bool
	meta    map[string]string
}

// bill records a priced call. Zero-cost calls are kept for the breakdown.
func (j *job) bill(c call) {
	j.calls = append(j.calls, c)
}

func (j *job) total() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range j.calls {
		sum = sum.Add(c.cost)
	}
	return sum
}

// body runs the job-specific steps after the budget check and returns the
// complete payload.
type body func(ctx context.Context, j *job) (map[string]any, error)

// launch starts a job in its own goroutine and returns its reporter. The
// job keeps running under a detached context bounded by Timeout when sub
// is cancelled. The temp files are removed when the job ends, whatever
// the outcome.
func (r *Runner) launch(sub context.Context, p plan, meta map[string]string, fn body, temp ...string) *progress.Reporter {
	id := uuid.NewString()
	rep := progress.Start(sub, id, progress.WithLogger(r.Log), progress.WithClock(r.Now))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer rep.Close()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(sub), r.Timeout)
		defer cancel()

		j := &job{id: id, plan: p, rep: rep, started: r.Now(), meta: meta, temp: temp}
		r.execute(ctx, j, fn)
	}()
	return rep
}

// Wait blocks until every launched job has finished, or until ctx is done.
// Call it after the job sources have stopped and before closing the stores
// the jobs write to.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) execute(ctx context.Context, j *job, fn body) {
	log := r.Log.With("job_id", j.id, "kind", j.plan.kind)
	defer r.cleanup(j, log)

	defer func() {
		if v := recover(); v != nil {
			log.Errorw("job panicked", "panic", v)
			r.fail(ctx, j, errors.Newf(errors.ErrProvider, "internal error: %v", v), log)
		}
	}()

	if ok := r.checkBudget(ctx, j, log); !ok {
		return
	}

	payload, err := fn(ctx, j)
	if err == nil && !j.settled {
		err = r.settle(ctx, j)
	}
	if err != nil {
		r.fail(ctx, j, err, log)
		return
	}

	if payload == nil {
		payload = map[string]any{}
	}
	payload["jobId"] = j.id
	payload["cost"] = j.total()
	_ = j.rep.Complete("Done", payload)

	r.Metrics.ObserveJob(string(j.plan.kind), "success", r.Now().Sub(j.started))
	r.journal(ctx, j, models.ProcessSuccess, "completed", nil, log)
	log.Infow("job completed", "cost", j.total().StringFixed(6), "calls", len(j.calls))
}

// checkBudget emits the estimate and budget steps and gates the job. It
// reports false after failing the job.
func (r *Runner) checkBudget(ctx context.Context, j *job, log *logger.Logger) bool {
	_ = j.rep.Emit("estimate", "Estimating API costs...", j.plan.estimateAt, nil)
	estimate := r.Pricing.Estimate(j.plan.kind)
	if j.plan.estimatedAt > 0 {
		_ = j.rep.Emit("estimate", "Cost estimated", j.plan.estimatedAt, map[string]any{"estimatedCost": estimate})
	}

	var (
		decision models.BudgetDecision
		err      error
	)
	if r.Budget.Reserving() {
		var res budget.Reservation
		res, decision, err = r.Budget.Reserve(ctx, estimate)
		if err == nil && decision.Allowed {
			j.res = &res
		}
	} else {
		decision, err = r.Budget.CanAfford(ctx, estimate)
	}

	if err != nil {
		log.Errorw("budget check failed", "error", err)
		r.Metrics.BudgetDenied("error")
		r.deny(ctx, j, errors.New(errors.ErrPersistence, "Budget check failed"), log)
		return false
	}
	if !decision.Allowed {
		reason := "monthly"
		if strings.HasPrefix(decision.Reason, "Daily") {
			reason = "daily"
		}
		r.Metrics.BudgetDenied(reason)
		log.Warnw("job denied by budget", "reason", decision.Reason, "estimate", estimate.StringFixed(4))
		r.deny(ctx, j, errors.New(errors.ErrBudgetExceeded, decision.Reason), log)
		return false
	}

	_ = j.rep.Emit("budget", "Budget check passed", j.plan.budgetAt, map[string]any{"estimatedCost": estimate})
	return true
}

// deny fails a job that never passed the budget gate.
func (r *Runner) deny(ctx context.Context, j *job, err error, log *logger.Logger) {
	_ = j.rep.Fail(err.Error())
	r.Metrics.ObserveJob(string(j.plan.kind), "denied", r.Now().Sub(j.started))
	r.journal(ctx, j, models.ProcessError, err.Error(), err, log)
}

// fail settles whatever was billed, reports the error and captures it.
func (r *Runner) fail(ctx context.Context, j *job, err error, log *logger.Logger) {
	if !j.settled {
		if serr := r.settle(ctx, j); serr != nil {
			log.Errorw("recording cost of failed job", "error", serr)
		}
	}

	_ = j.rep.Fail(err.Error())
	r.Metrics.ObserveJob(string(j.plan.kind), "error", r.Now().Sub(j.started))
	r.journal(ctx, j, models.ProcessError, err.Error(), err, log)

	if !errors.Is(err, errors.ErrValidation) {
		tags := map[string]string{
			"job_id": j.id,
			"kind":   string(j.plan.kind),
		}
		if kind := errors.KindOf(err); kind != nil {
			tags["error_kind"] = kind.Error()
		}
		r.Tracker.CaptureError(ctx, err, tags)
	}
	log.Warnw("job failed", "error", err)
}

// settle writes the job's single summarizing cost entry, or releases the
// reservation when nothing was billed. It runs at most once per job.
func (r *Runner) settle(ctx context.Context, j *job) error {
	j.settled = true

	entry, billed := r.summaryEntry(j)
	switch {
	case !billed && j.res != nil:
		return r.Budget.Release(ctx, j.res.ID)
	case !billed:
		return nil
	}

	var err error
	if j.res != nil {
		_, err = r.Budget.Commit(ctx, j.res.ID, entry)
	} else {
		_, err = r.Budget.Record(ctx, entry)
	}
	if err != nil {
		return errors.Wrap(errors.Mark(err, errors.ErrPersistence), "record job cost")
	}
	for _, c := range j.calls {
		r.Metrics.AddCost(string(c.service), c.cost)
	}
	return nil
}

// summaryEntry folds the billed calls into one entry. The entry's service
// is that of the most expensive call; the metadata keeps the breakdown.
func (r *Runner) summaryEntry(j *job) (models.CostEntry, bool) {
	var billed []call
	for _, c := range j.calls {
		if c.cost.IsPositive() || c.tokens > 0 {
			billed = append(billed, c)
		}
	}
	if len(billed) == 0 {
		return models.CostEntry{}, false
	}

	top := billed[0]
	tokens := 0
	perService := map[models.Service]decimal.Decimal{}
	var labels []string
	for _, c := range billed {
		if c.cost.GreaterThan(top.cost) {
			top = c
		}
		tokens += c.tokens
		perService[c.service] = perService[c.service].Add(c.cost)
		labels = append(labels, c.operation+":"+c.provider+"/"+c.model)
	}

	meta := map[string]string{
		"kind":  string(j.plan.kind),
		"calls": strings.Join(labels, ","),
	}
	for svc, cost := range perService {
		meta["cost_"+string(svc)] = cost.StringFixed(6)
	}
	for k, v := range j.meta {
		meta[k] = v
	}

	entry := models.CostEntry{
		Service:   top.service,
		Operation: j.plan.operation,
		Cost:      j.total(),
		JobID:     j.id,
		Metadata:  meta,
		CreatedAt: r.Now(),
	}
	if tokens > 0 {
		entry.TokensUsed = &tokens
	}
	return entry, true
}

// journal writes the processing log row, tagging failures with their error
// kind. Write failures are logged and dropped.
func (r *Runner) journal(ctx context.Context, j *job, status models.ProcessStatus, details string, cause error, log *logger.Logger) {
	if r.Journal == nil {
		return
	}
	meta := make(map[string]string, len(j.meta)+2)
	for k, v := range j.meta {
		meta[k] = v
	}
	if kind := errors.KindOf(cause); kind != nil {
		meta["error_kind"] = kind.Error()
	}
	if len(j.calls) > 0 {
		services := make([]string, 0, len(j.calls))
		for _, c := range j.calls {
			services = append(services, string(c.service))
		}
		sort.Strings(services)
		meta["services"] = strings.Join(services, ",")
	}

	err := r.Journal.Log(ctx, models.ProcessingLog{
		JobID:       j.id,
		ProcessType: j.plan.process,
		Status:      status,
		Details:     details,
		Cost:        j.total(),
		DurationMs:  r.Now().Sub(j.started).Milliseconds(),
		Metadata:    meta,
	})
	if err != nil {
		log.Warnw("processing log write failed", "error", err)
	}
}

// cleanup removes temporary files. It runs whatever the outcome.
func (r *Runner) cleanup(j *job, log *logger.Logger) {
	for _, path := range j.temp {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warnw("temp file cleanup failed", "path", path, "error", err)
		}
	}
}

// providerCall counts a provider call in metrics.
func (r *Runner) providerCall(provider, operation string, err error) {
	if errors.Is(err, providers.ErrNoImageData) {
		err = nil
	}
	r.Metrics.ProviderCall(provider, operation, err)
}

func (r *Runner) textFor(kind models.JobKind) (*providers.Named[providers.TextGenerator], error) {
	if n := r.Providers.Text[kind]; n != nil && n.Client != nil {
		return n, nil
	}
	return nil, errors.Newf(errors.ErrProvider, "no text provider configured for %s", kind)
}

// textCall runs a text generation and bills it.
func (r *Runner) textCall(ctx context.Context, j *job, kind models.JobKind, operation, system, prompt string) (providers.TextResult, error) {
	gen, err := r.textFor(kind)
	if err != nil {
		return providers.TextResult{}, err
	}
	res, err := gen.Client.Generate(ctx, system, prompt)
	if res.Cached {
		r.providerCall("cache", operation, err)
	} else {
		r.providerCall(gen.Provider, operation, err)
	}
	if err != nil {
		return res, err
	}
	if res.Cached {
		return res, nil
	}

	model := res.Model
	if model == "" {
		model = gen.Model
	}
	j.bill(call{
		service:   models.ServiceTextGen,
		operation: operation,
		provider:  gen.Provider,
		model:     model,
		cost:      r.Pricing.TextCost(model, res.PromptTokens, res.CompletionTokens),
		tokens:    res.TokensUsed,
	})
	return res, nil
}
