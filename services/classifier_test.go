package services

import (
	"testing"

	"github.com/fenilmodi00/ipo-lifecycle/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestClassifyDayThresholds(t *testing.T) {
	prev := 100.0

	tests := []struct {
		name       string
		close      float64
		wantClass  models.DayClassification
		wantPct    float64
		hitCeiling bool
		hitFloor   bool
	}{
		{"exactly at ceiling threshold", 109.50, models.ClassCeiling, 9.5, true, false},
		{"just under ceiling threshold", 109.49, models.ClassBuyerClosed, 9.49, false, false},
		{"well above ceiling threshold", 110.00, models.ClassCeiling, 10, true, false},
		{"exactly at floor threshold", 90.50, models.ClassFloor, -9.5, false, true},
		{"just above floor threshold", 90.51, models.ClassSellerClosed, -9.49, false, false},
		{"well below floor threshold", 90.00, models.ClassFloor, -10, false, true},
		{"small gain", 101.00, models.ClassBuyerClosed, 1, false, false},
		{"small loss", 99.00, models.ClassSellerClosed, -1, false, false},
		{"flat", 100.00, models.ClassUnchanged, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := ClassifyDay(tt.close, &prev, nil, nil)
			assert.Equal(t, tt.wantClass, outcome.Classification)
			assert.InDelta(t, tt.wantPct, outcome.PctChange, 0.001)
			assert.Equal(t, tt.hitCeiling, outcome.HitCeiling)
			assert.Equal(t, tt.hitFloor, outcome.HitFloor)
		})
	}
}

func TestClassifyDayOpeningDay(t *testing.T) {
	// No previous close means the instrument just listed; it is reported
	// locked at the ceiling with a zero percentage change.
	outcome := ClassifyDay(11.00, nil, nil, nil)
	assert.True(t, outcome.HitCeiling)
	assert.False(t, outcome.HitFloor)
	assert.Equal(t, 0.0, outcome.PctChange)
	assert.Equal(t, models.ClassCeiling, outcome.Classification)

	zero := 0.0
	outcome = ClassifyDay(11.00, &zero, nil, nil)
	assert.True(t, outcome.HitCeiling)
	assert.Equal(t, models.ClassCeiling, outcome.Classification)
}

func TestClassifyDayRounding(t *testing.T) {
	prev := 11.00
	outcome := ClassifyDay(10.80, &prev, nil, nil)
	assert.Equal(t, -1.82, outcome.PctChange)
	assert.Equal(t, models.ClassSellerClosed, outcome.Classification)
}

func TestClassifyDayProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("classification is deterministic for identical inputs", prop.ForAll(
		func(close, prev float64) bool {
			a := ClassifyDay(close, &prev, nil, nil)
			b := ClassifyDay(close, &prev, nil, nil)
			return a == b
		},
		gen.Float64Range(0.01, 1000),
		gen.Float64Range(0.01, 1000),
	))

	properties.Property("ceiling and floor are mutually exclusive", prop.ForAll(
		func(close, prev float64) bool {
			outcome := ClassifyDay(close, &prev, nil, nil)
			return !(outcome.HitCeiling && outcome.HitFloor)
		},
		gen.Float64Range(0.01, 1000),
		gen.Float64Range(0.01, 1000),
	))

	properties.Property("hit flags agree with the stored percentage", prop.ForAll(
		func(close, prev float64) bool {
			outcome := ClassifyDay(close, &prev, nil, nil)
			if outcome.HitCeiling != (outcome.PctChange >= CeilingThresholdPct) {
				return false
			}
			return outcome.HitFloor == (outcome.PctChange <= FloorThresholdPct)
		},
		gen.Float64Range(0.01, 1000),
		gen.Float64Range(0.01, 1000),
	))

	properties.Property("classification sign matches the percentage sign", prop.ForAll(
		func(close, prev float64) bool {
			outcome := ClassifyDay(close, &prev, nil, nil)
			switch outcome.Classification {
			case models.ClassBuyerClosed:
				return outcome.PctChange > 0
			case models.ClassSellerClosed:
				return outcome.PctChange < 0
			case models.ClassUnchanged:
				return outcome.PctChange == 0
			default:
				return true
			}
		},
		gen.Float64Range(0.01, 1000),
		gen.Float64Range(0.01, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
