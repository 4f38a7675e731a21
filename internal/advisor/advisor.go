// Package advisor owns the per-user plan lifecycle: generating the
// calculated plan, regenerating it when the target changes and refining it
// through assistant requests.
package advisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/awaistahir/wattplan/internal/apperr"
	"github.com/awaistahir/wattplan/internal/engine"
	"github.com/awaistahir/wattplan/internal/llm"
	"github.com/awaistahir/wattplan/internal/store"
)

// Store is the persistence the advisor needs. Missing records are reported
// with store.ErrNotFound.
type Store interface {
	ListAppliances(ctx context.Context, userID string) ([]engine.Appliance, error)
	GetProfile(ctx context.Context, userID string) (*engine.Profile, error)
	UpsertProfile(ctx context.Context, p *engine.Profile) error
	GetPlan(ctx context.Context, userID string) (*engine.Plan, error)
	UpsertPlan(ctx context.Context, userID string, plan *engine.Plan) (*engine.Plan, error)
	DeletePlan(ctx context.Context, userID string) error
}

// Result is the outcome of a plan operation. Plan is always set when the
// plan could be computed, even if saving it failed.
type Result struct {
	Plan   *engine.Plan      `json:"plan"`
	Delta  *engine.BillDelta `json:"delta,omitempty"`
	Saved  bool              `json:"saved"`
	Notice string            `json:"notice,omitempty"`
}

type Advisor struct {
	store     Store
	completer llm.Completer
	rates     engine.Rates
	logger    *slog.Logger
	locks     *keyedMutex
}

// New creates an Advisor. A nil completer runs the advisor in
// calculated-only mode.
func New(s Store, completer llm.Completer, rates engine.Rates, logger *slog.Logger) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{
		store:     s,
		completer: completer,
		rates:     rates,
		logger:    logger.With("component", "advisor"),
		locks:     newKeyedMutex(),
	}
}

// AssistantEnabled reports whether adjustment requests reach a model
func (a *Advisor) AssistantEnabled() bool {
	return a.completer != nil
}

// Rates returns the tariff the advisor prices plans with
func (a *Advisor) Rates() engine.Rates {
	return a.rates
}

// household is the state every plan operation starts from
type household struct {
	profile    *engine.Profile
	appliances []engine.Appliance
}

// baselineBill is last month's bill, or the calculated current bill when
// none was recorded.
func (h household) baselineBill(r engine.Rates) float64 {
	if h.profile.LastMonthBill > 0 {
		return h.profile.LastMonthBill
	}
	return r.CurrentBill(h.appliances)
}

func (a *Advisor) load(ctx context.Context, userID string) (household, error) {
	profile, err := a.store.GetProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return household{}, apperr.Validation("target_bill", "set a target bill before generating a plan")
	}
	if err != nil {
		return household{}, apperr.Database(err, "could not load your billing profile")
	}
	if profile.TargetBill <= 0 {
		return household{}, apperr.Validation("target_bill", "target bill must be greater than zero")
	}

	appliances, err := a.store.ListAppliances(ctx, userID)
	if err != nil {
		return household{}, apperr.Database(err, "could not load your appliances")
	}
	if len(appliances) == 0 {
		return household{}, apperr.Validation("appliances", "add at least one appliance before generating a plan")
	}
	return household{profile: profile, appliances: appliances}, nil
}

func (a *Advisor) calculate(h household) (*engine.Plan, error) {
	plan, err := engine.Generate(h.appliances, h.profile.LastMonthBill, h.profile.TargetBill, a.rates)
	switch {
	case errors.Is(err, engine.ErrNoAppliances):
		return nil, apperr.Validation("appliances", "add at least one appliance before generating a plan")
	case errors.Is(err, engine.ErrInvalidTarget):
		return nil, apperr.Validation("target_bill", "target bill must be greater than zero")
	case err != nil:
		return nil, apperr.Internal(err)
	}
	return plan, nil
}

// Current returns the stored plan
func (a *Advisor) Current(ctx context.Context, userID string) (*engine.Plan, error) {
	plan, err := a.store.GetPlan(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("plan")
	}
	if err != nil {
		return nil, apperr.Database(err, "could not load your plan")
	}
	return plan, nil
}

// Generate computes the calculated plan for the user's current appliances
// and target and stores it.
func (a *Advisor) Generate(ctx context.Context, userID string) (*Result, error) {
	unlock := a.locks.Lock(userID)
	defer unlock()
	return a.generate(ctx, userID)
}

func (a *Advisor) generate(ctx context.Context, userID string) (*Result, error) {
	h, err := a.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := a.calculate(h)
	if err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "plan generated",
		"user_id", userID,
		"projected_bill", plan.ProjectedBill,
		"target_bill", h.profile.TargetBill,
		"status", plan.Status)

	return a.commit(ctx, userID, h.profile, plan)
}

// ChangeTarget sets a new target bill, discards the stored plan and
// regenerates it.
func (a *Advisor) ChangeTarget(ctx context.Context, userID string, target float64) (*Result, error) {
	if target <= 0 {
		return nil, apperr.Validation("target_bill", "target bill must be greater than zero")
	}

	unlock := a.locks.Lock(userID)
	defer unlock()

	profile, err := a.store.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		profile = &engine.Profile{UserID: userID}
	case err != nil:
		return nil, apperr.Database(err, "could not load your billing profile")
	}

	profile.TargetBill = target
	if err := a.store.UpsertProfile(ctx, profile); err != nil {
		return nil, apperr.Database(err, "could not save your target bill")
	}
	if err := a.store.DeletePlan(ctx, userID); err != nil {
		return nil, apperr.Database(err, "could not discard your previous plan")
	}

	a.logger.InfoContext(ctx, "target changed", "user_id", userID, "target_bill", target)
	return a.generate(ctx, userID)
}

// commit stores plan and updates the expected monthly cost. The write is
// skipped when the caller has already gone away.
func (a *Advisor) commit(ctx context.Context, userID string, profile *engine.Profile, plan *engine.Plan) (*Result, error) {
	res := &Result{Plan: plan}

	if err := ctx.Err(); err != nil {
		a.logger.WarnContext(ctx, "request abandoned, plan not saved", "user_id", userID, "error", err)
		res.Notice = "The request was cancelled before the plan was saved."
		return res, apperr.Wrap(err, apperr.TypeInternal, "CANCELLED", "the request was cancelled")
	}

	stored, err := a.store.UpsertPlan(ctx, userID, plan)
	if err != nil {
		a.logger.ErrorContext(ctx, "saving plan failed", "user_id", userID, "error", err)
		res.Notice = "Your plan was calculated but could not be saved."
		return res, apperr.Database(err, "your plan was calculated but could not be saved")
	}
	res.Plan = stored
	res.Saved = true

	profile.ExpectedMonthlyCost = stored.ProjectedBill
	if err := a.store.UpsertProfile(ctx, profile); err != nil {
		a.logger.ErrorContext(ctx, "updating expected cost failed", "user_id", userID, "error", err)
		return res, apperr.Database(err, "your plan was saved but the expected cost was not updated")
	}
	return res, nil
}

// Budget returns the budget progress for the user's stored plan, or for the
// calculated current bill when there is none.
func (a *Advisor) Budget(ctx context.Context, userID string) (engine.BudgetProgress, error) {
	profile, err := a.store.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		profile = &engine.Profile{UserID: userID}
	case err != nil:
		return engine.BudgetProgress{}, apperr.Database(err, "could not load your billing profile")
	}

	plan, err := a.store.GetPlan(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return engine.BudgetProgress{}, apperr.Database(err, "could not load your plan")
	}

	current := profile.LastMonthBill
	if plan == nil {
		appliances, err := a.store.ListAppliances(ctx, userID)
		if err != nil {
			return engine.BudgetProgress{}, apperr.Database(err, "could not load your appliances")
		}
		if bill := a.rates.CurrentBill(appliances); bill > 0 {
			current = engine.Round2(bill)
		}
	}
	return engine.Progress(plan, current, profile.TargetBill), nil
}

// keyedMutex serializes plan mutations per user
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
