package report

import (
	"github.com/pvcast/pvcast/internal/models"
)

// LossItem is one rung of the loss waterfall.
type LossItem struct {
	Name string  `json:"name"`
	Pct  float64 `json:"pct"`
}

// LossDiagram flattens a loss tree into waterfall order. Availability is
// reported as the loss it causes, not the uptime fraction.
func LossDiagram(l models.LossTree) []LossItem {
	return []LossItem{
		{Name: "Soiling", Pct: l.SoilingPct},
		{Name: "Snow", Pct: l.SnowPct},
		{Name: "IAM", Pct: l.IAMPct},
		{Name: "Mismatch", Pct: l.MismatchPct},
		{Name: "DC wiring", Pct: l.DCWiringPct},
		{Name: "AC wiring", Pct: l.ACWiringPct},
		{Name: "Auxiliary", Pct: l.AuxPct},
		{Name: "Availability", Pct: 100 - l.AvailabilityPct},
	}
}
