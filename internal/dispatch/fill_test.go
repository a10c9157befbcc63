package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tozahudud-backend/internal/models"
)

func TestNextFillState(t *testing.T) {
	cases := []struct {
		name       string
		status     string
		fill       int
		distance   float64
		wantStatus string
		wantFill   int
	}{
		{"at threshold goes full", models.BinStatusEmpty, 40, 20, models.BinStatusFull, 95},
		{"below threshold goes full", models.BinStatusEmpty, 40, 3.5, models.BinStatusFull, 95},
		{"full is sticky above threshold", models.BinStatusFull, 95, 80, models.BinStatusFull, 95},
		{"full stays full on repeat full reading", models.BinStatusFull, 95, 10, models.BinStatusFull, 95},
		{"mid range estimates linearly", models.BinStatusEmpty, 15, 60, models.BinStatusEmpty, 50},
		{"near empty clamps to baseline", models.BinStatusEmpty, 15, 119, models.BinStatusEmpty, 15},
		{"beyond sensor range clamps to baseline", models.BinStatusEmpty, 15, 400, models.BinStatusEmpty, 15},
		{"just above threshold estimates high", models.BinStatusEmpty, 15, 21, models.BinStatusEmpty, 83},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, fill := NextFillState(tc.status, tc.fill, tc.distance)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantFill, fill)
		})
	}
}

func TestEstimateFillLevelNeverExceedsFull(t *testing.T) {
	for d := 0.0; d <= 130; d += 0.5 {
		fill := estimateFillLevel(d)
		assert.GreaterOrEqual(t, fill, EmptyFillLevel, "distance %.1f", d)
		assert.LessOrEqual(t, fill, FullFillLevel, "distance %.1f", d)
	}
}
