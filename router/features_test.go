package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFeatureEncoder_Encode(t *testing.T) {
	enc := NewFeatureEncoder([]string{"us", "eu", "asia"})
	s := mustSnapshot(t, reading(50, 40, 1, 2, 3))

	got := enc.Encode("eu", s, testTime)

	assert.Equal(t, []float64{50, 40, 1, 2, 3, 14, 0, 0, 1, 0}, got)
	assert.Equal(t, enc.Width(), len(got))
	assert.Equal(t, 1, OneHotIndex(got))
}

func TestFeatureEncoder_UnknownBackend_AllZeroOneHot(t *testing.T) {
	enc := NewFeatureEncoder([]string{"us"})
	got := enc.Encode("new", mustSnapshot(t, reading(1, 1, 1, 1, 1)), testTime)
	assert.Equal(t, 0.0, got[FeatureDayOfWeek+1])
	assert.Equal(t, -1, OneHotIndex(got))
}

func TestFeatureEncoder_FeatureNames(t *testing.T) {
	enc := NewFeatureEncoder([]string{"a", "b"})
	names := enc.FeatureNames()
	assert.Equal(t, "latency_ms", names[FeatureLatency])
	assert.Equal(t, "hour", names[FeatureHour])
	assert.Equal(t, "dayofweek", names[FeatureDayOfWeek])
	assert.Equal(t, []string{"server_a", "server_b"}, names[FeatureDayOfWeek+1:])
	assert.Equal(t, []string{"a", "b"}, enc.BackendNames())
}

func TestDayOfWeek_MondayIsZero(t *testing.T) {
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		assert.Equal(t, i, DayOfWeek(monday.AddDate(0, 0, i)))
	}
}

func TestDiurnalProfile_LoadAt(t *testing.T) {
	p := DiurnalProfile{Base: 40, PeakHour: 15}
	// sin(0)=0 at the peak hour gives half the swing.
	assert.InDelta(t, 65, p.LoadAt(15), 1e-9)
	assert.InDelta(t, 90, p.LoadAt(21), 1e-9)
	assert.InDelta(t, 40, p.LoadAt(9), 1e-9)

	hot := DiurnalProfile{Base: 90, PeakHour: 0}
	assert.Equal(t, 100.0, hot.LoadAt(6), "clamped")
	assert.Equal(t, RegionProfile("Mars"), RegionProfile(""))
}
