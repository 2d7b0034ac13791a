package services

import (
	"math"

	"github.com/fenilmodi00/ipo-lifecycle/models"
)

// Detection thresholds. The regulatory daily limit is a nominal ±10%;
// the band sits at ±9.5% to absorb rounding in published prices.
const (
	CeilingThresholdPct = 9.5
	FloorThresholdPct   = -9.5
)

// DayOutcome is the result of classifying a single trading day.
type DayOutcome struct {
	HitCeiling     bool                     `json:"hit_ceiling"`
	HitFloor       bool                     `json:"hit_floor"`
	PctChange      float64                  `json:"pct_change"`
	Classification models.DayClassification `json:"classification"`
}

// ClassifyDay maps a day's close price and the previous close to a
// price-limit outcome. A nil or zero prevClose marks an opening day; newly
// listed instruments conventionally open locked at the upper limit, so the
// day is reported as ceiling with a zero percentage change. High and low
// are currently unused but kept in the signature since intraday limits are
// published alongside the close.
func ClassifyDay(closePrice float64, prevClose *float64, high, low *float64) DayOutcome {
	if prevClose == nil || *prevClose == 0 {
		return DayOutcome{
			HitCeiling:     true,
			PctChange:      0,
			Classification: models.ClassCeiling,
		}
	}

	pctChange := roundPct((closePrice - *prevClose) / *prevClose * 100)

	outcome := DayOutcome{
		HitCeiling: pctChange >= CeilingThresholdPct,
		HitFloor:   pctChange <= FloorThresholdPct,
		PctChange:  pctChange,
	}

	switch {
	case outcome.HitCeiling:
		outcome.Classification = models.ClassCeiling
	case outcome.HitFloor:
		outcome.Classification = models.ClassFloor
	case pctChange > 0:
		outcome.Classification = models.ClassBuyerClosed
	case pctChange < 0:
		outcome.Classification = models.ClassSellerClosed
	default:
		outcome.Classification = models.ClassUnchanged
	}

	return outcome
}

// roundPct rounds to two decimal places, the precision percentage changes
// are stored and compared at.
func roundPct(v float64) float64 {
	return math.Round(v*100) / 100
}
