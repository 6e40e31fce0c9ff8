package model

import "time"

// ViolationType identifies which configured ceiling was breached.
type ViolationType string

const (
	ViolationPositionSize      ViolationType = "position_size"
	ViolationDailyLoss         ViolationType = "daily_loss"
	ViolationMarginUtilization ViolationType = "margin_utilization"
	ViolationDeltaExposure     ViolationType = "delta_exposure"
	ViolationVegaExposure      ViolationType = "vega_exposure"
	ViolationConcentration     ViolationType = "concentration"
	ViolationValueAtRisk       ViolationType = "value_at_risk"
)

// Severity grades a violation. Severity is monotonic in the overage:
// more than 75% over the limit is critical, more than 25% is error,
// anything else is a warning.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for threshold comparisons: warning < error < critical.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityError:
		return 1
	default:
		return 0
	}
}

// ViolationStatus is the lifecycle state of a violation:
// active -> acknowledged -> resolved.
type ViolationStatus string

const (
	StatusActive       ViolationStatus = "active"
	StatusAcknowledged ViolationStatus = "acknowledged"
	StatusResolved     ViolationStatus = "resolved"
)

// RiskViolation records one breached limit at one point in time.
type RiskViolation struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	BrokerID          string          `json:"broker_id"`
	Type              ViolationType   `json:"type"`
	Severity          Severity        `json:"severity"`
	CurrentValue      float64         `json:"current_value"`
	LimitValue        float64         `json:"limit_value"`
	ViolationPercent  float64         `json:"violation_percent"` // (current-limit)/limit*100
	AffectedPositions []string        `json:"affected_positions,omitempty"`
	SuggestedActions  []string        `json:"suggested_actions,omitempty"`
	AutoRemediation   bool            `json:"auto_remediation"`
	Timestamp         time.Time       `json:"timestamp"`
	Status            ViolationStatus `json:"status"`
	ResolvedAt        *time.Time      `json:"resolved_at,omitempty"`
}

// SuggestionType is a remediation action category.
type SuggestionType string

const (
	SuggestReducePosition SuggestionType = "reduce_position"
	SuggestClosePosition  SuggestionType = "close_position"
	SuggestStopTrading    SuggestionType = "stop_trading"
	SuggestAddMargin      SuggestionType = "add_margin"
)

// RiskReductionSuggestion is a remediation derived on demand from
// violations; it is not persisted.
type RiskReductionSuggestion struct {
	Type            SuggestionType `json:"type"`
	PositionID      string         `json:"position_id,omitempty"`
	SuggestedAmount float64        `json:"suggested_amount,omitempty"`
	AutoExecutable  bool           `json:"auto_executable"`
	Reason          string         `json:"reason,omitempty"`
}

// RiskLimits is the per-(user, broker) limit configuration. Created on first
// SetRiskLimits or first monitoring subscription; never auto-deleted.
type RiskLimits struct {
	UserID               string    `json:"user_id"`
	BrokerID             string    `json:"broker_id"`
	MaxPositionSize      float64   `json:"max_position_size"`
	MaxDailyLoss         float64   `json:"max_daily_loss"`
	MaxMarginUtilization float64   `json:"max_margin_utilization"` // percent
	MaxDeltaExposure     float64   `json:"max_delta_exposure"`
	MaxVegaExposure      float64   `json:"max_vega_exposure"`
	MaxConcentrationPct  float64   `json:"max_concentration_pct"`
	MaxValueAtRisk       float64   `json:"max_value_at_risk"`
	Enabled              bool      `json:"enabled"`
	AutoRiskReduction    bool      `json:"auto_risk_reduction"`
	LastUpdated          time.Time `json:"last_updated"`
}

// Key returns the monitor map key for these limits: "user:broker".
func (l *RiskLimits) Key() string {
	return l.UserID + ":" + l.BrokerID
}

// AlertConfig controls per-user alert delivery. Violations below MinSeverity
// are suppressed; Muted suppresses delivery entirely.
type AlertConfig struct {
	UserID      string   `json:"user_id"`
	MinSeverity Severity `json:"min_severity"`
	Muted       bool     `json:"muted"`
}
