// Package limits stores per-(user, broker) risk limit configurations,
// evaluates risk snapshots against them, grades violations by severity, and
// drives remediation suggestions and automatic risk reduction.
package limits

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"risk-systemv1/internal/model"
)

// ConfigStore persists limit and alert configuration across restarts.
// Implemented by the Redis store; a nil store keeps configuration in memory
// only.
type ConfigStore interface {
	SaveLimits(ctx context.Context, limits model.RiskLimits) error
	LoadAllLimits(ctx context.Context) ([]model.RiskLimits, error)
	SaveAlertConfig(ctx context.Context, cfg model.AlertConfig) error
	LoadAllAlertConfigs(ctx context.Context) ([]model.AlertConfig, error)
}

// Journal records violation lifecycle events durably. Implemented by the
// SQLite journal; a nil journal disables persistence.
type Journal interface {
	RecordViolation(v model.RiskViolation) error
	UpdateViolationStatus(id string, status model.ViolationStatus, resolvedAt *time.Time) error
}

// Executor carries out auto-executable risk reduction actions. The monitor
// only delegates; order placement itself is out of scope.
type Executor interface {
	Execute(ctx context.Context, userID, brokerID string, s model.RiskReductionSuggestion) error
}

// Severity breakpoints. The contract only requires severity monotonic in the
// overage with ~100% over limit critical; these exact cutoffs are a
// documented choice.
const (
	criticalOveragePct = 75.0
	errorOveragePct    = 25.0
)

// DefaultLimits returns the ceilings applied when a user first subscribes to
// monitoring without explicit configuration: generous but finite.
func DefaultLimits(userID, brokerID string) model.RiskLimits {
	return model.RiskLimits{
		UserID:               userID,
		BrokerID:             brokerID,
		MaxPositionSize:      1_000_000,
		MaxDailyLoss:         50_000,
		MaxMarginUtilization: 80,
		MaxDeltaExposure:     500,
		MaxVegaExposure:      1_000,
		MaxConcentrationPct:  25,
		MaxValueAtRisk:       100_000,
		Enabled:              true,
		AutoRiskReduction:    false,
		LastUpdated:          time.Now().UTC(),
	}
}

// LimitsPatch is a partial RiskLimits update; nil fields keep their current
// (or default) value.
type LimitsPatch struct {
	MaxPositionSize      *float64
	MaxDailyLoss         *float64
	MaxMarginUtilization *float64
	MaxDeltaExposure     *float64
	MaxVegaExposure      *float64
	MaxConcentrationPct  *float64
	MaxValueAtRisk       *float64
	Enabled              *bool
	AutoRiskReduction    *bool
}

// Monitor evaluates risk snapshots against configured limits. All maps are
// guarded by a single mutex; concurrent calls for different users never
// contend beyond that.
type Monitor struct {
	mu         sync.RWMutex
	limits     map[string]model.RiskLimits  // key = "user:broker"
	alertCfgs  map[string]model.AlertConfig // key = userID
	violations []model.RiskViolation        // active + historical
	monitoring map[string]bool              // key = "user:broker"

	store    ConfigStore
	journal  Journal
	executor Executor
}

// NewMonitor creates a Monitor. store, journal, and executor may each be nil.
func NewMonitor(store ConfigStore, journal Journal, executor Executor) *Monitor {
	return &Monitor{
		limits:     make(map[string]model.RiskLimits),
		alertCfgs:  make(map[string]model.AlertConfig),
		monitoring: make(map[string]bool),
		store:      store,
		journal:    journal,
		executor:   executor,
	}
}

// Restore loads persisted limits and alert configs from the config store.
// Call once at startup; a load failure is logged and the monitor starts
// empty.
func (m *Monitor) Restore(ctx context.Context) {
	if m.store == nil {
		return
	}
	all, err := m.store.LoadAllLimits(ctx)
	if err != nil {
		log.Printf("[limits] restore failed, starting empty: %v", err)
		return
	}
	cfgs, err := m.store.LoadAllAlertConfigs(ctx)
	if err != nil {
		log.Printf("[limits] alert config restore failed, starting empty: %v", err)
	}
	m.mu.Lock()
	for _, l := range all {
		m.limits[l.Key()] = l
	}
	for _, cfg := range cfgs {
		m.alertCfgs[cfg.UserID] = cfg
	}
	m.mu.Unlock()
	log.Printf("[limits] restored %d limit configs, %d alert configs", len(all), len(cfgs))
}

// SetRiskLimits merges the patch onto the existing limits (or defaults),
// stamps LastUpdated, upserts, and persists. Returns the stored value.
func (m *Monitor) SetRiskLimits(ctx context.Context, userID, brokerID string, patch LimitsPatch) model.RiskLimits {
	key := userID + ":" + brokerID

	m.mu.Lock()
	current, ok := m.limits[key]
	if !ok {
		current = DefaultLimits(userID, brokerID)
	}
	applyPatch(&current, patch)
	current.LastUpdated = time.Now().UTC()
	m.limits[key] = current
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.SaveLimits(ctx, current); err != nil {
			log.Printf("[limits] persist %s failed: %v", key, err)
		}
	}
	return current
}

// GetRiskLimits returns the limits for (user, broker), if configured.
func (m *Monitor) GetRiskLimits(userID, brokerID string) (model.RiskLimits, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.limits[userID+":"+brokerID]
	return l, ok
}

// SetAlertConfig upserts and persists the per-user alert configuration.
func (m *Monitor) SetAlertConfig(ctx context.Context, cfg model.AlertConfig) {
	m.mu.Lock()
	m.alertCfgs[cfg.UserID] = cfg
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.SaveAlertConfig(ctx, cfg); err != nil {
			log.Printf("[limits] persist alert config %s failed: %v", cfg.UserID, err)
		}
	}
}

// AlertConfigFor returns the alert configuration for a user, if set.
func (m *Monitor) AlertConfigFor(userID string) (model.AlertConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.alertCfgs[userID]
	return cfg, ok
}

// StartMonitoring marks (user, broker) as actively monitored, creating
// default limits on first subscription.
func (m *Monitor) StartMonitoring(userID, brokerID string) model.RiskLimits {
	key := userID + ":" + brokerID
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monitoring[key] = true
	l, ok := m.limits[key]
	if !ok {
		l = DefaultLimits(userID, brokerID)
		m.limits[key] = l
	}
	return l
}

// StopMonitoring clears the active-monitoring flag. Limits are never
// auto-deleted.
func (m *Monitor) StopMonitoring(userID, brokerID string) {
	m.mu.Lock()
	delete(m.monitoring, userID+":"+brokerID)
	m.mu.Unlock()
}

// IsMonitoring reports whether (user, broker) is actively monitored.
func (m *Monitor) IsMonitoring(userID, brokerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.monitoring[userID+":"+brokerID]
}

// CheckViolations evaluates the snapshot against the configured limits.
// Missing or disabled limits yield no violations (a configuration state,
// not an error). Each triggered check appends an active violation.
func (m *Monitor) CheckViolations(userID, brokerID string, positions []model.Position, risk *model.PortfolioRisk, margin model.MarginInfo, dailyPnL float64) []model.RiskViolation {
	m.mu.RLock()
	lims, ok := m.limits[userID+":"+brokerID]
	m.mu.RUnlock()
	if !ok || !lims.Enabled {
		return nil
	}

	now := time.Now().UTC()
	var found []model.RiskViolation

	newViolation := func(t model.ViolationType, current, limit float64, positionIDs []string, actions []string) model.RiskViolation {
		pct := 0.0
		if limit != 0 {
			pct = (current - limit) / limit * 100
		}
		return model.RiskViolation{
			ID:                uuid.NewString(),
			UserID:            userID,
			BrokerID:          brokerID,
			Type:              t,
			Severity:          severityFor(pct),
			CurrentValue:      current,
			LimitValue:        limit,
			ViolationPercent:  pct,
			AffectedPositions: positionIDs,
			SuggestedActions:  actions,
			AutoRemediation:   lims.AutoRiskReduction,
			Timestamp:         now,
			Status:            model.StatusActive,
		}
	}

	// position_size: any single position exceeding the ceiling.
	if lims.MaxPositionSize > 0 {
		for _, p := range positions {
			c := p.Core()
			if v := math.Abs(c.PositionValue); v > lims.MaxPositionSize {
				found = append(found, newViolation(
					model.ViolationPositionSize, v, lims.MaxPositionSize,
					[]string{c.ID},
					[]string{fmt.Sprintf("reduce position %s by %.2f", c.ID, v-lims.MaxPositionSize)},
				))
			}
		}
	}

	// daily_loss: only losses count.
	if lims.MaxDailyLoss > 0 && dailyPnL < 0 && math.Abs(dailyPnL) > lims.MaxDailyLoss {
		found = append(found, newViolation(
			model.ViolationDailyLoss, math.Abs(dailyPnL), lims.MaxDailyLoss,
			nil, []string{"close losing positions", "stop trading for the day"},
		))
	}

	if lims.MaxMarginUtilization > 0 && margin.MarginUtilization > lims.MaxMarginUtilization {
		found = append(found, newViolation(
			model.ViolationMarginUtilization, margin.MarginUtilization, lims.MaxMarginUtilization,
			nil, []string{"add margin", "reduce position sizes"},
		))
	}

	if risk != nil {
		if lims.MaxDeltaExposure > 0 {
			if d := math.Abs(risk.PortfolioGreeks.Delta); d > lims.MaxDeltaExposure {
				found = append(found, newViolation(
					model.ViolationDeltaExposure, d, lims.MaxDeltaExposure,
					nil, []string{"hedge delta exposure"},
				))
			}
		}
		if lims.MaxVegaExposure > 0 {
			if v := math.Abs(risk.PortfolioGreeks.Vega); v > lims.MaxVegaExposure {
				found = append(found, newViolation(
					model.ViolationVegaExposure, v, lims.MaxVegaExposure,
					nil, []string{"reduce volatility exposure"},
				))
			}
		}
		if lims.MaxConcentrationPct > 0 && risk.ConcentrationRisk.LargestPositionPercent > lims.MaxConcentrationPct {
			found = append(found, newViolation(
				model.ViolationConcentration, risk.ConcentrationRisk.LargestPositionPercent, lims.MaxConcentrationPct,
				nil, []string{"diversify holdings"},
			))
		}
		if lims.MaxValueAtRisk > 0 && risk.ValueAtRisk > lims.MaxValueAtRisk {
			found = append(found, newViolation(
				model.ViolationValueAtRisk, risk.ValueAtRisk, lims.MaxValueAtRisk,
				nil, []string{"reduce overall exposure"},
			))
		}
	}

	if len(found) > 0 {
		m.mu.Lock()
		m.violations = append(m.violations, found...)
		m.mu.Unlock()

		if m.journal != nil {
			for _, v := range found {
				if err := m.journal.RecordViolation(v); err != nil {
					log.Printf("[limits] journal violation %s failed: %v", v.ID, err)
				}
			}
		}
	}
	return found
}

// Acknowledge transitions a violation to acknowledged. Returns false if the
// id is unknown; this is a no-op, not an error.
func (m *Monitor) Acknowledge(id string) bool {
	return m.transition(id, model.StatusAcknowledged, false)
}

// Resolve transitions a violation to resolved and stamps the resolution
// time. Returns false if the id is unknown.
func (m *Monitor) Resolve(id string) bool {
	return m.transition(id, model.StatusResolved, true)
}

func (m *Monitor) transition(id string, status model.ViolationStatus, stampResolved bool) bool {
	m.mu.Lock()
	var updated *model.RiskViolation
	for i := range m.violations {
		if m.violations[i].ID == id {
			m.violations[i].Status = status
			if stampResolved {
				now := time.Now().UTC()
				m.violations[i].ResolvedAt = &now
			}
			updated = &m.violations[i]
			break
		}
	}
	m.mu.Unlock()

	if updated == nil {
		return false
	}
	if m.journal != nil {
		if err := m.journal.UpdateViolationStatus(id, status, updated.ResolvedAt); err != nil {
			log.Printf("[limits] journal status update %s failed: %v", id, err)
		}
	}
	return true
}

// ActiveViolations returns a snapshot of violations still in active status
// for (user, broker).
func (m *Monitor) ActiveViolations(userID, brokerID string) []model.RiskViolation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.RiskViolation
	for _, v := range m.violations {
		if v.UserID == userID && v.BrokerID == brokerID && v.Status == model.StatusActive {
			out = append(out, v)
		}
	}
	return out
}

// ExecuteAutoRiskReduction runs auto-executable suggestions when (and only
// when) auto risk reduction is enabled for the account and at least one
// violation is critical. Returns whether reduction was triggered.
func (m *Monitor) ExecuteAutoRiskReduction(ctx context.Context, userID, brokerID string, positions []model.Position, violations []model.RiskViolation) bool {
	m.mu.RLock()
	lims, ok := m.limits[userID+":"+brokerID]
	m.mu.RUnlock()
	if !ok || !lims.AutoRiskReduction {
		return false
	}

	critical := false
	for _, v := range violations {
		if v.Severity == model.SeverityCritical {
			critical = true
			break
		}
	}
	if !critical {
		return false
	}

	for _, s := range m.GenerateSuggestions(positions, violations) {
		if !s.AutoExecutable || m.executor == nil {
			continue
		}
		if err := m.executor.Execute(ctx, userID, brokerID, s); err != nil {
			log.Printf("[limits] auto reduction %s for %s:%s failed: %v", s.Type, userID, brokerID, err)
		}
	}
	return true
}

// severityFor grades a violation by its overage percentage.
func severityFor(pct float64) model.Severity {
	switch {
	case pct > criticalOveragePct:
		return model.SeverityCritical
	case pct > errorOveragePct:
		return model.SeverityError
	default:
		return model.SeverityWarning
	}
}

func applyPatch(l *model.RiskLimits, p LimitsPatch) {
	if p.MaxPositionSize != nil {
		l.MaxPositionSize = *p.MaxPositionSize
	}
	if p.MaxDailyLoss != nil {
		l.MaxDailyLoss = *p.MaxDailyLoss
	}
	if p.MaxMarginUtilization != nil {
		l.MaxMarginUtilization = *p.MaxMarginUtilization
	}
	if p.MaxDeltaExposure != nil {
		l.MaxDeltaExposure = *p.MaxDeltaExposure
	}
	if p.MaxVegaExposure != nil {
		l.MaxVegaExposure = *p.MaxVegaExposure
	}
	if p.MaxConcentrationPct != nil {
		l.MaxConcentrationPct = *p.MaxConcentrationPct
	}
	if p.MaxValueAtRisk != nil {
		l.MaxValueAtRisk = *p.MaxValueAtRisk
	}
	if p.Enabled != nil {
		l.Enabled = *p.Enabled
	}
	if p.AutoRiskReduction != nil {
		l.AutoRiskReduction = *p.AutoRiskReduction
	}
}
