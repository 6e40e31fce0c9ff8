package limits

import (
	"fmt"
	"sort"

	"risk-systemv1/internal/model"
)

// GenerateSuggestions derives remediation suggestions from violations:
//   - position_size: reduce the named position by (current - limit)
//   - daily_loss: close the most unprofitable position and stop trading
//     (the stop is auto-executable)
//   - margin_utilization: add margin and reduce positions
func (m *Monitor) GenerateSuggestions(positions []model.Position, violations []model.RiskViolation) []model.RiskReductionSuggestion {
	var out []model.RiskReductionSuggestion

	for _, v := range violations {
		switch v.Type {
		case model.ViolationPositionSize:
			for _, id := range v.AffectedPositions {
				out = append(out, model.RiskReductionSuggestion{
					Type:            model.SuggestReducePosition,
					PositionID:      id,
					SuggestedAmount: v.CurrentValue - v.LimitValue,
					Reason:          fmt.Sprintf("position exceeds size limit by %.1f%%", v.ViolationPercent),
				})
			}

		case model.ViolationDailyLoss:
			if worst := mostUnprofitable(positions); worst != "" {
				out = append(out, model.RiskReductionSuggestion{
					Type:       model.SuggestClosePosition,
					PositionID: worst,
					Reason:     "largest unrealized loss",
				})
			}
			out = append(out, model.RiskReductionSuggestion{
				Type:           model.SuggestStopTrading,
				AutoExecutable: true,
				Reason:         fmt.Sprintf("daily loss exceeds limit by %.1f%%", v.ViolationPercent),
			})

		case model.ViolationMarginUtilization:
			out = append(out,
				model.RiskReductionSuggestion{
					Type:            model.SuggestAddMargin,
					SuggestedAmount: v.CurrentValue - v.LimitValue,
					Reason:          "margin utilization above limit",
				},
				model.RiskReductionSuggestion{
					Type:   model.SuggestReducePosition,
					Reason: "free margin by reducing exposure",
				},
			)
		}
	}
	return out
}

// mostUnprofitable returns the position id with the lowest unrealized P&L,
// or "" when there are no losing positions.
func mostUnprofitable(positions []model.Position) string {
	sorted := make([]model.Position, len(positions))
	copy(sorted, positions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Core().UnrealizedPnL < sorted[j].Core().UnrealizedPnL
	})
	if len(sorted) == 0 || sorted[0].Core().UnrealizedPnL >= 0 {
		return ""
	}
	return sorted[0].Core().ID
}
