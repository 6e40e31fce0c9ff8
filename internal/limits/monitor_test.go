package limits

import (
	"context"
	"sync"
	"testing"
	"time"

	"risk-systemv1/internal/model"
)

func f64(v float64) *float64 { return &v }
func bptr(v bool) *bool      { return &v }

// memJournal records journal calls in memory.
type memJournal struct {
	mu       sync.Mutex
	recorded []model.RiskViolation
	updates  []string
}

func (j *memJournal) RecordViolation(v model.RiskViolation) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recorded = append(j.recorded, v)
	return nil
}

func (j *memJournal) UpdateViolationStatus(id string, status model.ViolationStatus, _ *time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.updates = append(j.updates, id+":"+string(status))
	return nil
}

// memExecutor records executed suggestions.
type memExecutor struct {
	mu       sync.Mutex
	executed []model.RiskReductionSuggestion
}

func (e *memExecutor) Execute(_ context.Context, _, _ string, s model.RiskReductionSuggestion) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, s)
	return nil
}

// memStore is an in-memory ConfigStore.
type memStore struct {
	mu     sync.Mutex
	limits map[string]model.RiskLimits
	alerts map[string]model.AlertConfig
}

func newMemStore() *memStore {
	return &memStore{
		limits: make(map[string]model.RiskLimits),
		alerts: make(map[string]model.AlertConfig),
	}
}

func (s *memStore) SaveLimits(_ context.Context, l model.RiskLimits) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits[l.Key()] = l
	return nil
}

func (s *memStore) LoadAllLimits(_ context.Context) ([]model.RiskLimits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RiskLimits
	for _, l := range s.limits {
		out = append(out, l)
	}
	return out, nil
}

func (s *memStore) SaveAlertConfig(_ context.Context, cfg model.AlertConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[cfg.UserID] = cfg
	return nil
}

func (s *memStore) LoadAllAlertConfigs(_ context.Context) ([]model.AlertConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AlertConfig
	for _, cfg := range s.alerts {
		out = append(out, cfg)
	}
	return out, nil
}

func mkPos(id string, value, unrealized float64) *model.OptionPosition {
	return &model.OptionPosition{
		PositionCore: model.PositionCore{
			ID:            id,
			Underlying:    "NIFTY",
			Side:          model.Long,
			Qty:           1,
			PositionValue: value,
			UnrealizedPnL: unrealized,
		},
		Strike: 100,
	}
}

func TestSeverityFor(t *testing.T) {
	cases := []struct {
		pct  float64
		want model.Severity
	}{
		{5, model.SeverityWarning},
		{25, model.SeverityWarning},
		{26, model.SeverityError},
		{75, model.SeverityError},
		{76, model.SeverityCritical},
		{100, model.SeverityCritical},
		{250, model.SeverityCritical},
	}
	for _, c := range cases {
		if got := severityFor(c.pct); got != c.want {
			t.Errorf("severityFor(%v) = %s, want %s", c.pct, got, c.want)
		}
	}
}

func TestCheckViolations_NoLimitsConfigured(t *testing.T) {
	m := NewMonitor(nil, nil, nil)
	got := m.CheckViolations("u1", "b1", []model.Position{mkPos("p1", 2_000_000, 0)}, nil, model.MarginInfo{}, 0)
	if got != nil {
		t.Fatalf("unconfigured user produced %d violations, want none", len(got))
	}
}

func TestCheckViolations_Disabled(t *testing.T) {
	m := NewMonitor(nil, nil, nil)
	m.SetRiskLimits(context.Background(), "u1", "b1", LimitsPatch{Enabled: bptr(false)})

	got := m.CheckViolations("u1", "b1", []model.Position{mkPos("p1", 2_000_000, 0)}, nil, model.MarginInfo{}, -100_000)
	if got != nil {
		t.Fatalf("disabled limits produced %d violations, want none", len(got))
	}
}

func TestCheckViolations_PositionSize(t *testing.T) {
	j := &memJournal{}
	m := NewMonitor(nil, j, nil)
	m.SetRiskLimits(context.Background(), "u1", "b1", LimitsPatch{MaxPositionSize: f64(1000)})

	got := m.CheckViolations("u1", "b1", []model.Position{mkPos("p1", 1500, 0)}, nil, model.MarginInfo{}, 0)
	if len(got) != 1 {
		t.Fatalf("violations = %d, want 1", len(got))
	}
	v := got[0]
	if v.Type != model.ViolationPositionSize {
		t.Errorf("type = %s, want %s", v.Type, model.ViolationPositionSize)
	}
	if v.ViolationPercent != 50 {
		t.Errorf("violation percent = %v, want 50", v.ViolationPercent)
	}
	if v.Severity != model.SeverityError {
		t.Errorf("severity = %s, want error", v.Severity)
	}
	if len(v.AffectedPositions) != 1 || v.AffectedPositions[0] != "p1" {
		t.Errorf("affected positions = %v, want [p1]", v.AffectedPositions)
	}
	if v.Status != model.StatusActive {
		t.Errorf("status = %s, want active", v.Status)
	}
	if v.ID == "" {
		t.Error("violation ID not assigned")
	}
	if len(j.recorded) != 1 {
		t.Errorf("journaled %d violations, want 1", len(j.recorded))
	}
}

func TestCheckViolations_DailyLossOnlyCountsLosses(t *testing.T) {
	m := NewMonitor(nil, nil, nil)
	m.SetRiskLimits(context.Background(), "u1", "b1", LimitsPatch{MaxDailyLoss: f64(1000)})

	if got := m.CheckViolations("u1", "b1", nil, nil, model.MarginInfo{}, 5000); got != nil {
		t.Fatalf("profit flagged as daily loss: %d violations", len(got))
	}

	got := m.CheckViolations("u1", "b1", nil, nil, model.MarginInfo{}, -2500)
	if len(got) != 1 || got[0].Type != model.ViolationDailyLoss {
		t.Fatalf("loss of 2500 vs limit 1000: got %v", got)
	}
	// 150% over the limit is critical.
	if got[0].Severity != model.SeverityCritical {
		t.Errorf("severity = %s, want critical", got[0].Severity)
	}
}

func TestCheckViolations_RiskSnapshot(t *testing.T) {
	m := NewMonitor(nil, nil, nil)
	m.SetRiskLimits(context.Background(), "u1", "b1", LimitsPatch{
		MaxDeltaExposure:    f64(100),
		MaxVegaExposure:     f64(200),
		MaxConcentrationPct: f64(25),
		MaxValueAtRisk:      f64(10_000),
	})

	risk := &model.PortfolioRisk{
		PortfolioGreeks: model.Greeks{Delta: -150, Vega: 250},
		ValueAtRisk:     12_000,
		ConcentrationRisk: model.ConcentrationMetrics{
			LargestPositionPercent: 40,
		},
	}

	got := m.CheckViolations("u1", "b1", nil, risk, model.MarginInfo{}, 0)
	types := map[model.ViolationType]bool{}
	for _, v := range got {
		types[v.Type] = true
	}
	for _, want := range []model.ViolationType{
		model.ViolationDeltaExposure,
		model.ViolationVegaExposure,
		model.ViolationConcentration,
		model.ViolationValueAtRisk,
	} {
		if !types[want] {
			t.Errorf("missing %s violation", want)
		}
	}
	if len(got) != 4 {
		t.Errorf("violations = %d, want 4", len(got))
	}
}

func TestViolationLifecycle(t *testing.T) {
	j := &memJournal{}
	m := NewMonitor(nil, j, nil)
	m.SetRiskLimits(context.Background(), "u1", "b1", LimitsPatch{MaxPositionSize: f64(1000)})

	got := m.CheckViolations("u1", "b1", []model.Position{mkPos("p1", 1500, 0)}, nil, model.MarginInfo{}, 0)
	id := got[0].ID

	active := m.ActiveViolations("u1", "b1")
	if len(active) != 1 {
		t.Fatalf("active violations = %d, want 1", len(active))
	}

	if !m.Acknowledge(id) {
		t.Fatal("Acknowledge returned false for known id")
	}
	if len(m.ActiveViolations("u1", "b1")) != 0 {
		t.Error("acknowledged violation still listed as active")
	}

	if !m.Resolve(id) {
		t.Fatal("Resolve returned false for known id")
	}

	if m.Acknowledge("no-such-id") {
		t.Error("Acknowledge of unknown id returned true")
	}
	if m.Resolve("no-such-id") {
		t.Error("Resolve of unknown id returned true")
	}

	if len(j.updates) != 2 {
		t.Errorf("journal updates = %d, want 2", len(j.updates))
	}
}

func TestStartMonitoring_CreatesDefaults(t *testing.T) {
	m := NewMonitor(nil, nil, nil)

	if m.IsMonitoring("u1", "b1") {
		t.Fatal("monitoring before subscription")
	}
	l := m.StartMonitoring("u1", "b1")
	if !l.Enabled {
		t.Error("default limits not enabled")
	}
	if l.MaxPositionSize != 1_000_000 {
		t.Errorf("default MaxPositionSize = %v, want 1000000", l.MaxPositionSize)
	}
	if !m.IsMonitoring("u1", "b1") {
		t.Error("not monitoring after subscription")
	}

	m.StopMonitoring("u1", "b1")
	if m.IsMonitoring("u1", "b1") {
		t.Error("still monitoring after stop")
	}
	// Limits survive the unsubscribe.
	if _, ok := m.GetRiskLimits("u1", "b1"); !ok {
		t.Error("limits deleted on StopMonitoring")
	}
}

func TestSetRiskLimits_PartialPatch(t *testing.T) {
	m := NewMonitor(nil, nil, nil)
	first := m.SetRiskLimits(context.Background(), "u1", "b1", LimitsPatch{MaxDailyLoss: f64(9000)})
	if first.MaxDailyLoss != 9000 {
		t.Errorf("MaxDailyLoss = %v, want 9000", first.MaxDailyLoss)
	}
	if first.MaxPositionSize != 1_000_000 {
		t.Errorf("unpatched field = %v, want default 1000000", first.MaxPositionSize)
	}

	second := m.SetRiskLimits(context.Background(), "u1", "b1", LimitsPatch{MaxPositionSize: f64(500)})
	if second.MaxDailyLoss != 9000 {
		t.Errorf("earlier patch lost: MaxDailyLoss = %v, want 9000", second.MaxDailyLoss)
	}
	if second.MaxPositionSize != 500 {
		t.Errorf("MaxPositionSize = %v, want 500", second.MaxPositionSize)
	}
	if !second.LastUpdated.After(time.Time{}) {
		t.Error("LastUpdated not stamped")
	}
}

func TestExecuteAutoRiskReduction_Gating(t *testing.T) {
	ex := &memExecutor{}
	m := NewMonitor(nil, nil, ex)
	ctx := context.Background()

	critical := []model.RiskViolation{{Type: model.ViolationDailyLoss, Severity: model.SeverityCritical}}
	warning := []model.RiskViolation{{Type: model.ViolationDailyLoss, Severity: model.SeverityWarning}}

	// No limits configured at all.
	if m.ExecuteAutoRiskReduction(ctx, "u1", "b1", nil, critical) {
		t.Fatal("triggered without configured limits")
	}

	// Auto reduction disabled (the default).
	m.SetRiskLimits(ctx, "u1", "b1", LimitsPatch{})
	if m.ExecuteAutoRiskReduction(ctx, "u1", "b1", nil, critical) {
		t.Fatal("triggered with AutoRiskReduction disabled")
	}

	m.SetRiskLimits(ctx, "u1", "b1", LimitsPatch{AutoRiskReduction: bptr(true)})
	if m.ExecuteAutoRiskReduction(ctx, "u1", "b1", nil, warning) {
		t.Fatal("triggered without a critical violation")
	}

	if !m.ExecuteAutoRiskReduction(ctx, "u1", "b1", nil, critical) {
		t.Fatal("not triggered despite critical violation and enabled flag")
	}
	if len(ex.executed) != 1 {
		t.Fatalf("executed %d suggestions, want 1 (the stop-trading action)", len(ex.executed))
	}
	if ex.executed[0].Type != model.SuggestStopTrading {
		t.Errorf("executed %s, want %s", ex.executed[0].Type, model.SuggestStopTrading)
	}
}

func TestGenerateSuggestions(t *testing.T) {
	m := NewMonitor(nil, nil, nil)
	positions := []model.Position{
		mkPos("winner", 500, 1200),
		mkPos("loser", 800, -3400),
		mkPos("meh", 300, -100),
	}

	violations := []model.RiskViolation{
		{
			Type:              model.ViolationPositionSize,
			CurrentValue:      1500,
			LimitValue:        1000,
			ViolationPercent:  50,
			AffectedPositions: []string{"p1"},
		},
		{Type: model.ViolationDailyLoss, ViolationPercent: 120},
		{Type: model.ViolationMarginUtilization, CurrentValue: 92, LimitValue: 80},
	}

	out := m.GenerateSuggestions(positions, violations)

	byType := map[model.SuggestionType][]model.RiskReductionSuggestion{}
	for _, s := range out {
		byType[s.Type] = append(byType[s.Type], s)
	}

	reduce := byType[model.SuggestReducePosition]
	if len(reduce) != 2 { // one for position_size, one for margin
		t.Fatalf("reduce_position suggestions = %d, want 2", len(reduce))
	}
	if reduce[0].PositionID != "p1" || reduce[0].SuggestedAmount != 500 {
		t.Errorf("position_size suggestion = %+v, want p1 reduced by 500", reduce[0])
	}

	closes := byType[model.SuggestClosePosition]
	if len(closes) != 1 || closes[0].PositionID != "loser" {
		t.Errorf("close_position = %+v, want the most unprofitable position", closes)
	}

	stops := byType[model.SuggestStopTrading]
	if len(stops) != 1 || !stops[0].AutoExecutable {
		t.Errorf("stop_trading = %+v, want one auto-executable entry", stops)
	}

	if len(byType[model.SuggestAddMargin]) != 1 {
		t.Errorf("add_margin suggestions = %d, want 1", len(byType[model.SuggestAddMargin]))
	}
}

func TestMostUnprofitable_NoLosers(t *testing.T) {
	if got := mostUnprofitable([]model.Position{mkPos("a", 100, 50), mkPos("b", 100, 10)}); got != "" {
		t.Fatalf("mostUnprofitable with no losers = %q, want empty", got)
	}
	if got := mostUnprofitable(nil); got != "" {
		t.Fatalf("mostUnprofitable of empty book = %q, want empty", got)
	}
}

func TestAlertConfig_PersistAndRestore(t *testing.T) {
	store := newMemStore()
	m := NewMonitor(store, nil, nil)
	m.SetRiskLimits(context.Background(), "u1", "b1", LimitsPatch{MaxDailyLoss: f64(500)})
	m.SetAlertConfig(context.Background(), model.AlertConfig{
		UserID:      "u1",
		MinSeverity: model.SeverityError,
	})

	if len(store.alerts) != 1 {
		t.Fatalf("persisted alert configs = %d, want 1", len(store.alerts))
	}

	m2 := NewMonitor(store, nil, nil)
	m2.Restore(context.Background())

	if l, ok := m2.GetRiskLimits("u1", "b1"); !ok || l.MaxDailyLoss != 500 {
		t.Fatalf("restored limits = %+v (ok=%v), want MaxDailyLoss 500", l, ok)
	}
	cfg, ok := m2.AlertConfigFor("u1")
	if !ok {
		t.Fatal("alert config not restored")
	}
	if cfg.MinSeverity != model.SeverityError || cfg.Muted {
		t.Errorf("restored alert config = %+v, want MinSeverity error, unmuted", cfg)
	}
}
