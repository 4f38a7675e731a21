package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/awaistahir/wattplan/internal/apperr"
	"github.com/awaistahir/wattplan/internal/engine"
	"github.com/awaistahir/wattplan/internal/llm"
	"github.com/awaistahir/wattplan/internal/store"
)

// MaxRequestLength bounds the free-text adjustment request in characters
const MaxRequestLength = 1000

const (
	noticeFallback   = "The assistant is unavailable right now, so this is your calculated plan. Nothing was changed."
	noticeCalculated = "The assistant is not enabled, so this is your calculated plan. Nothing was changed."
)

// Adjust refines the user's plan with a free-text request. The calculated
// plan is always computed first; the model's proposal is layered on top and
// normalized before it replaces the stored plan.
//
// Credential problems return a config error with no plan. Transient model
// failures and unusable output return the calculated plan with
// Source=fallback and leave stored state untouched.
func (a *Advisor) Adjust(ctx context.Context, userID, request string) (*Result, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, apperr.Validation("message", "tell the assistant what you would like to change")
	}
	if utf8.RuneCountInString(request) > MaxRequestLength {
		return nil, apperr.Validation("message", fmt.Sprintf("requests are limited to %d characters", MaxRequestLength))
	}

	unlock := a.locks.Lock(userID)
	defer unlock()

	h, err := a.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	baseline, err := a.baseline(ctx, h, userID)
	if err != nil {
		return nil, err
	}

	if !a.AssistantEnabled() {
		return a.fallback(baseline, noticeCalculated), nil
	}

	prompt, err := buildPrompt(h, baseline, request, a.rates)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	raw, err := a.completer.Complete(ctx, systemPrompt, prompt, true)
	if err != nil {
		if llm.IsCredentialError(err) {
			a.logger.ErrorContext(ctx, "assistant credentials missing or rejected", "user_id", userID, "error", err)
			return nil, apperr.Config(err, "the assistant is not configured correctly, please contact support")
		}
		a.logger.WarnContext(ctx, "assistant call failed, serving calculated plan", "user_id", userID, "error", err)
		return a.fallback(baseline, noticeFallback), nil
	}

	reply, err := llm.ExtractJSON[modelReply](raw)
	if err == nil && len(reply.Plan) == 0 {
		err = fmt.Errorf("%w: empty plan", llm.ErrInvalidOutput)
	}
	if err != nil {
		a.logger.WarnContext(ctx, "assistant reply unusable, serving calculated plan", "user_id", userID, "error", err, "reply_bytes", len(raw))
		return a.fallback(baseline, noticeFallback), nil
	}

	plan := a.reconcile(h, baseline, reply)
	delta := engine.CompareBills(baseline.ProjectedBill, plan.ProjectedBill)

	a.logger.InfoContext(ctx, "plan adjusted",
		"user_id", userID,
		"items", len(plan.Items),
		"projected_bill", plan.ProjectedBill,
		"model_projected_bill", reply.ProjectedBill,
		"delta", delta.Amount)

	res, err := a.commit(ctx, userID, h.profile, plan)
	res.Delta = &delta
	return res, err
}

// baseline is the stored plan, or a freshly calculated one with neutral
// change labels when nothing is stored yet.
func (a *Advisor) baseline(ctx context.Context, h household, userID string) (*engine.Plan, error) {
	stored, err := a.store.GetPlan(ctx, userID)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Database(err, "could not load your plan")
	}

	plan, err := a.calculate(h)
	if err != nil {
		return nil, err
	}
	for i := range plan.Items {
		plan.Items[i].Change = "No change"
	}
	return plan, nil
}

func (a *Advisor) fallback(baseline *engine.Plan, notice string) *Result {
	plan := baseline.Clone()
	plan.Source = engine.SourceFallback
	return &Result{Plan: plan, Notice: notice}
}

func (a *Advisor) reconcile(h household, baseline *engine.Plan, reply modelReply) *engine.Plan {
	items, projected := Normalize(reply.Plan, baseline, h.appliances, a.rates)

	target := h.profile.TargetBill
	minimum := engine.MinimumBill(h.appliances, a.rates)
	plan := &engine.Plan{
		Items:         items,
		ProjectedBill: projected,
		TotalSavings:  engine.Round2(h.baselineBill(a.rates) - projected),
		MinimumBill:   engine.Round2(minimum),
		Explanation:   strings.TrimSpace(reply.Explanation),
		Source:        engine.SourceAssistant,
		Status:        engine.StatusFor(projected, target, minimum),
	}

	if plan.Explanation == "" {
		plan.Explanation = "Your plan was updated as requested."
	}
	if plan.Status == engine.StatusOverTarget {
		plan.Explanation += fmt.Sprintf(" This plan is projected at %.2f, above your target of %.2f.", projected, target)
	}
	return plan
}
