// Package onboarding estimates per-appliance usage for a new household from
// last month's total consumption.
package onboarding

import (
	"context"
	"log/slog"
	"strings"

	"github.com/awaistahir/wattplan/internal/catalog"
	"github.com/awaistahir/wattplan/internal/disagg"
	"github.com/awaistahir/wattplan/internal/engine"
)

// Disaggregator is satisfied by *disagg.Client
type Disaggregator interface {
	Disaggregate(ctx context.Context, totalKWh float64, devices []disagg.Device) (*disagg.Result, error)
}

const (
	SourceService = "service"
	SourceCatalog = "catalog"
)

// Device is one appliance the user owns
type Device struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Watt     float64 `json:"watt"`
}

// Estimate is the estimated daily usage of one device
type Estimate struct {
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Watt       float64 `json:"watt"`
	DailyHours float64 `json:"daily_hours"`
	MonthlyKWh float64 `json:"monthly_kwh"`
	StartTime  string  `json:"start_time,omitempty"`
	EndTime    string  `json:"end_time,omitempty"`
}

// Result is the outcome of an estimate
type Result struct {
	Estimates []Estimate `json:"estimates"`
	Summary   string     `json:"summary,omitempty"`
	Source    string     `json:"source"`
}

// Estimator is best-effort: any service failure falls back to catalog
// default hours.
type Estimator struct {
	service Disaggregator
	logger  *slog.Logger
}

func NewEstimator(service Disaggregator, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{service: service, logger: logger}
}

func (e *Estimator) Estimate(ctx context.Context, totalKWh float64, devices []Device) *Result {
	if e.service != nil && totalKWh > 0 {
		req := make([]disagg.Device, len(devices))
		for i, d := range devices {
			req[i] = disagg.Device{Type: d.Name, Quantity: d.Quantity, RatedWatts: d.Watt}
		}
		res, err := e.service.Disaggregate(ctx, totalKWh, req)
		if err == nil {
			return fromService(devices, res)
		}
		e.logger.WarnContext(ctx, "disaggregation failed, using catalog defaults", "error", err, "devices", len(devices))
	}
	return fromCatalog(devices)
}

func fromService(devices []Device, res *disagg.Result) *Result {
	shares := make(map[string]disagg.Share, len(res.Breakdown))
	for _, s := range res.Breakdown {
		shares[strings.ToLower(s.Type)] = s
	}

	out := &Result{Summary: res.Summary, Source: SourceService}
	for _, d := range devices {
		est := defaultEstimate(d)
		if s, ok := shares[strings.ToLower(d.Name)]; ok {
			est.DailyHours = engine.Round1(s.DailyHours)
			est.MonthlyKWh = engine.Round2(s.KWh)
		}
		out.Estimates = append(out.Estimates, est)
	}
	return out
}

func fromCatalog(devices []Device) *Result {
	out := &Result{Source: SourceCatalog}
	for _, d := range devices {
		out.Estimates = append(out.Estimates, defaultEstimate(d))
	}
	return out
}

// defaultEstimate uses the catalog window for known types and zero hours
// otherwise.
func defaultEstimate(d Device) Estimate {
	est := Estimate{Name: d.Name, Quantity: d.Quantity, Watt: d.Watt}
	entry, ok := catalog.Lookup(d.Name)
	if !ok {
		return est
	}
	if est.Watt <= 0 {
		est.Watt = entry.Watt
	}
	hours := entry.DefaultHours()
	est.DailyHours = hours.DailyUsage
	est.StartTime = entry.Start
	est.EndTime = entry.End
	est.MonthlyKWh = engine.Round2(float64(d.Quantity) * est.Watt / 1000 * hours.DailyUsage * 30)
	return est
}
