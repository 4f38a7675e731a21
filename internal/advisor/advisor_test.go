package advisor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awaistahir/wattplan/internal/apperr"
	"github.com/awaistahir/wattplan/internal/engine"
	"github.com/awaistahir/wattplan/internal/logger"
	"github.com/awaistahir/wattplan/internal/store"
)

// memStore is an in-memory Store with injectable failures
type memStore struct {
	mu         sync.Mutex
	profiles   map[string]engine.Profile
	appliances map[string][]engine.Appliance
	plans      map[string]engine.Plan

	upsertPlanErr error
	upsertPlans   int
	deletePlans   int
}

func newMemStore() *memStore {
	return &memStore{
		profiles:   map[string]engine.Profile{},
		appliances: map[string][]engine.Appliance{},
		plans:      map[string]engine.Plan{},
	}
}

func (m *memStore) ListAppliances(ctx context.Context, userID string) ([]engine.Appliance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]engine.Appliance{}, m.appliances[userID]...), nil
}

func (m *memStore) GetProfile(ctx context.Context, userID string) (*engine.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) UpsertProfile(ctx context.Context, p *engine.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = *p
	return nil
}

func (m *memStore) GetPlan(ctx context.Context, userID string) (*engine.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *memStore) UpsertPlan(ctx context.Context, userID string, plan *engine.Plan) (*engine.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertPlans++
	if m.upsertPlanErr != nil {
		return nil, m.upsertPlanErr
	}
	stored := plan.Clone()
	stored.Version = m.plans[userID].Version + 1
	m.plans[userID] = *stored
	return stored.Clone(), nil
}

func (m *memStore) DeletePlan(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletePlans++
	delete(m.plans, userID)
	return nil
}

func appliance(id, name string, qty int, watt float64, start, end string) engine.Appliance {
	a := engine.Appliance{ID: id, UserID: "u1", Name: name, Quantity: qty, Watt: watt, StartTime: start, EndTime: end}
	a.ApplyBreakdown()
	return a
}

// seeded returns a store holding the three-appliance household with a
// 200 bill and a 120 target.
func seeded() *memStore {
	s := newMemStore()
	s.profiles["u1"] = engine.Profile{UserID: "u1", LastMonthBill: 200, TargetBill: 120}
	s.appliances["u1"] = []engine.Appliance{
		appliance("fridge", "Refrigerator", 1, 150, "00:00", "23:59"),
		appliance("ac", "Air Conditioner", 1, 1500, "18:00", "22:00"),
		appliance("lights", "LED Lights", 5, 10, "18:00", "23:00"),
	}
	return s
}

func newAdvisor(s Store, c *fakeCompleter) *Advisor {
	if c == nil {
		return New(s, nil, engine.DefaultRates, logger.Discard())
	}
	return New(s, c, engine.DefaultRates, logger.Discard())
}

func TestGenerate(t *testing.T) {
	s := seeded()
	adv := newAdvisor(s, nil)

	res, err := adv.Generate(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, res.Saved)

	assert.Equal(t, 1, res.Plan.Version)
	assert.Equal(t, engine.SourceCalculator, res.Plan.Source)
	assert.LessOrEqual(t, res.Plan.ProjectedBill, 126.0)
	assert.Equal(t, res.Plan.ProjectedBill, s.profiles["u1"].ExpectedMonthlyCost)

	again, err := adv.Generate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Plan.Version)
}

func TestGenerate_Validation(t *testing.T) {
	s := newMemStore()
	adv := newAdvisor(s, nil)

	_, err := adv.Generate(context.Background(), "u1")
	assert.True(t, apperr.IsType(err, apperr.TypeValidation))

	s.profiles["u1"] = engine.Profile{UserID: "u1", TargetBill: 100}
	_, err = adv.Generate(context.Background(), "u1")
	require.True(t, apperr.IsType(err, apperr.TypeValidation))
	assert.Equal(t, "appliances", apperr.As(err).Field)
}

func TestChangeTarget(t *testing.T) {
	s := seeded()
	adv := newAdvisor(s, nil)
	ctx := context.Background()

	first, err := adv.Generate(ctx, "u1")
	require.NoError(t, err)

	res, err := adv.ChangeTarget(ctx, "u1", 90)
	require.NoError(t, err)
	assert.Equal(t, 1, s.deletePlans, "previous plan is discarded")
	assert.Equal(t, 1, res.Plan.Version)
	assert.Equal(t, 90.0, s.profiles["u1"].TargetBill)
	assert.Less(t, res.Plan.ProjectedBill, first.Plan.ProjectedBill)

	_, err = adv.ChangeTarget(ctx, "u1", 0)
	assert.True(t, apperr.IsType(err, apperr.TypeValidation))
	assert.Equal(t, 90.0, s.profiles["u1"].TargetBill)
}

func TestChangeTarget_CreatesProfile(t *testing.T) {
	s := seeded()
	delete(s.profiles, "u1")
	adv := newAdvisor(s, nil)

	res, err := adv.ChangeTarget(context.Background(), "u1", 150)
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.Equal(t, 150.0, s.profiles["u1"].TargetBill)
}

func TestBudget(t *testing.T) {
	s := seeded()
	adv := newAdvisor(s, nil)
	ctx := context.Background()

	before, err := adv.Budget(ctx, "u1")
	require.NoError(t, err)
	current := engine.Round2(engine.DefaultRates.CurrentBill(s.appliances["u1"]))
	assert.Equal(t, current, before.DisplayedBill)

	res, err := adv.Generate(ctx, "u1")
	require.NoError(t, err)

	after, err := adv.Budget(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, res.Plan.ProjectedBill, after.DisplayedBill)
	assert.True(t, after.UnderBudget)
	assert.LessOrEqual(t, after.ProgressPercent, 100.0)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("u1")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Empty(t, k.locks)
}

func TestCommit_PersistFailure(t *testing.T) {
	s := seeded()
	s.upsertPlanErr = errors.New("disk I/O error")
	adv := newAdvisor(s, nil)

	res, err := adv.Generate(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.TypeDatabase))
	require.NotNil(t, res)
	require.NotNil(t, res.Plan, "computed plan is still returned")
	assert.False(t, res.Saved)
	assert.NotEmpty(t, res.Notice)
	assert.Zero(t, s.profiles["u1"].ExpectedMonthlyCost)
}
