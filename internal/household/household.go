// Package household manages a user's appliances and billing profile.
// Usage hours are always derived from the usage window here; callers cannot
// set them. Any appliance change discards the stored plan, which is
// regenerated on the next plan request.
package household

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/awaistahir/wattplan/internal/apperr"
	"github.com/awaistahir/wattplan/internal/catalog"
	"github.com/awaistahir/wattplan/internal/engine"
	"github.com/awaistahir/wattplan/internal/store"
)

// Input limits
const (
	MinQuantity   = 1
	MaxQuantity   = 100
	MinWatt       = 1
	MaxWatt       = 10000
	MaxNameLength = 100
)

// Store is the persistence the service needs
type Store interface {
	ListAppliances(ctx context.Context, userID string) ([]engine.Appliance, error)
	GetAppliance(ctx context.Context, userID, id string) (*engine.Appliance, error)
	SaveAppliance(ctx context.Context, a *engine.Appliance) error
	DeleteAppliance(ctx context.Context, userID, id string) error
	GetProfile(ctx context.Context, userID string) (*engine.Profile, error)
	UpsertProfile(ctx context.Context, p *engine.Profile) error
	DeletePlan(ctx context.Context, userID string) error
}

// ApplianceInput is what a user supplies for an appliance. Zero watt or
// empty window fields take the catalog defaults for known types.
type ApplianceInput struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Watt      float64 `json:"watt"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
}

// ProfileInput updates the billing history of a profile
type ProfileInput struct {
	LastMonthBill float64 `json:"last_month_bill"`
	LastMonthKWh  float64 `json:"last_month_kwh"`
}

type Service struct {
	store  Store
	rates  engine.Rates
	logger *slog.Logger
	newID  func() string
}

func NewService(s Store, rates engine.Rates, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  s,
		rates:  rates,
		logger: logger.With("component", "household"),
		newID:  uuid.NewString,
	}
}

// withDefaults fills blank fields from the catalog
func (in ApplianceInput) withDefaults() ApplianceInput {
	in.Name = strings.TrimSpace(in.Name)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndTime = strings.TrimSpace(in.EndTime)
	if in.Quantity == 0 {
		in.Quantity = 1
	}

	entry, ok := catalog.Lookup(in.Name)
	if !ok {
		return in
	}
	in.Name = entry.Name
	if in.Watt == 0 {
		in.Watt = entry.Watt
	}
	if in.StartTime == "" && in.EndTime == "" {
		in.StartTime, in.EndTime = entry.Start, entry.End
	}
	return in
}

// Validate rejects out-of-range input with a field-level message
func (in ApplianceInput) Validate() error {
	switch {
	case in.Name == "":
		return apperr.Validation("name", "appliance name is required")
	case len(in.Name) > MaxNameLength:
		return apperr.Validation("name", fmt.Sprintf("appliance name must be at most %d characters", MaxNameLength))
	case in.Quantity < MinQuantity || in.Quantity > MaxQuantity:
		return apperr.Validation("quantity", fmt.Sprintf("quantity must be between %d and %d", MinQuantity, MaxQuantity))
	case in.Watt < MinWatt || in.Watt > MaxWatt:
		return apperr.Validation("watt", fmt.Sprintf("watt must be between %d and %d", MinWatt, MaxWatt))
	case in.StartTime == "":
		return apperr.Validation("start_time", "start time is required")
	case in.EndTime == "":
		return apperr.Validation("end_time", "end time is required")
	case !engine.ValidClock(in.StartTime):
		return apperr.Validation("start_time", "start time must be HH:MM")
	case !engine.ValidClock(in.EndTime):
		return apperr.Validation("end_time", "end time must be HH:MM")
	}
	return nil
}

func (s *Service) ListAppliances(ctx context.Context, userID string) ([]engine.Appliance, error) {
	list, err := s.store.ListAppliances(ctx, userID)
	if err != nil {
		return nil, apperr.Database(err, "could not load your appliances")
	}
	return list, nil
}

func (s *Service) GetAppliance(ctx context.Context, userID, id string) (*engine.Appliance, error) {
	a, err := s.store.GetAppliance(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("appliance")
	}
	if err != nil {
		return nil, apperr.Database(err, "could not load the appliance")
	}
	return a, nil
}

// AddAppliance validates the input, derives usage hours and stores a new
// appliance with a fresh ID.
func (s *Service) AddAppliance(ctx context.Context, userID string, in ApplianceInput) (*engine.Appliance, error) {
	in = in.withDefaults()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	a := &engine.Appliance{
		ID:        s.newID(),
		UserID:    userID,
		Name:      in.Name,
		Quantity:  in.Quantity,
		Watt:      in.Watt,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
	}
	a.ApplyBreakdown()

	if err := s.store.SaveAppliance(ctx, a); err != nil {
		return nil, apperr.Database(err, "could not save the appliance")
	}
	s.logger.InfoContext(ctx, "appliance added", "user_id", userID, "appliance_id", a.ID, "name", a.Name, "daily_hours", a.DailyUsageHours)
	s.invalidatePlan(ctx, userID)
	return a, nil
}

// UpdateAppliance replaces an appliance's attributes and re-derives its
// usage hours.
func (s *Service) UpdateAppliance(ctx context.Context, userID, id string, in ApplianceInput) (*engine.Appliance, error) {
	existing, err := s.GetAppliance(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	in = in.withDefaults()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	existing.Name = in.Name
	existing.Quantity = in.Quantity
	existing.Watt = in.Watt
	existing.StartTime = in.StartTime
	existing.EndTime = in.EndTime
	existing.ApplyBreakdown()

	if err := s.store.SaveAppliance(ctx, existing); err != nil {
		return nil, apperr.Database(err, "could not save the appliance")
	}
	s.logger.InfoContext(ctx, "appliance updated", "user_id", userID, "appliance_id", id)
	s.invalidatePlan(ctx, userID)
	return existing, nil
}

func (s *Service) DeleteAppliance(ctx context.Context, userID, id string) error {
	err := s.store.DeleteAppliance(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("appliance")
	}
	if err != nil {
		return apperr.Database(err, "could not delete the appliance")
	}
	s.logger.InfoContext(ctx, "appliance deleted", "user_id", userID, "appliance_id", id)
	s.invalidatePlan(ctx, userID)
	return nil
}

// invalidatePlan drops the stored plan after an appliance change. A failure
// is only logged: the appliance is already saved and the advisor fills in
// appliances a stale plan lacks.
func (s *Service) invalidatePlan(ctx context.Context, userID string) {
	if err := s.store.DeletePlan(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "discarding stale plan failed", "user_id", userID, "error", err)
	}
}

// Profile returns the user's profile, or an empty one if none is stored
func (s *Service) Profile(ctx context.Context, userID string) (*engine.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &engine.Profile{UserID: userID}, nil
	}
	if err != nil {
		return nil, apperr.Database(err, "could not load your billing profile")
	}
	return p, nil
}

// UpdateProfile records last month's bill and consumption
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*engine.Profile, error) {
	if in.LastMonthBill < 0 {
		return nil, apperr.Validation("last_month_bill", "last month's bill cannot be negative")
	}
	if in.LastMonthKWh < 0 {
		return nil, apperr.Validation("last_month_kwh", "last month's consumption cannot be negative")
	}

	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.LastMonthBill = engine.Round2(in.LastMonthBill)
	p.LastMonthKWh = in.LastMonthKWh
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return nil, apperr.Database(err, "could not save your billing profile")
	}
	return p, nil
}

// CurrentBill is the calculated monthly bill of the user's appliances as
// registered
func (s *Service) CurrentBill(ctx context.Context, userID string) (float64, error) {
	list, err := s.ListAppliances(ctx, userID)
	if err != nil {
		return 0, err
	}
	return engine.Round2(s.rates.CurrentBill(list)), nil
}
