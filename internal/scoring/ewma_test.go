package scoring

import (
	"math"
	"testing"
	"time"
)

func approxEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

// TestUpdateState_S4 is spec scenario S4: state={v=0, n=0, t=T0},
// half-life=2 days, now=T0+1 day, obs=1.0 -> alpha ~= 0.293, v' ~= 0.293,
// samples=1.
func TestUpdateState_S4(t *testing.T) {
	t0 := time.Unix(0, 0)
	state := EwmaState{Value: 0, LastUpdated: t0, Samples: 0}
	now := t0.Add(24 * time.Hour)

	alpha := Alpha(now.Sub(t0), HealthHalfLife)
	if !approxEqual(alpha, 0.293, 0.001) {
		t.Fatalf("Alpha = %v, want ~0.293", alpha)
	}

	updated := UpdateState(state, 1.0, now, HealthHalfLife)
	if !approxEqual(updated.Value, 0.293, 0.001) {
		t.Fatalf("UpdateState.Value = %v, want ~0.293", updated.Value)
	}
	if updated.Samples != 1 {
		t.Fatalf("Samples = %d, want 1", updated.Samples)
	}
}

func TestUpdateState_FirstObservationSeedsValue(t *testing.T) {
	state := EwmaState{}
	now := time.Now()
	updated := UpdateState(state, 0.8, now, HealthHalfLife)
	if updated.Value != 0.8 || updated.Samples != 1 {
		t.Fatalf("UpdateState on cold state = %+v, want Value=0.8 Samples=1", updated)
	}
}

func TestConfidence_BoundedZeroToOne(t *testing.T) {
	cases := []struct {
		samples int
		age     time.Duration
	}{
		{0, 0}, {1, time.Hour}, {1000, 0}, {1000, 365 * 24 * time.Hour},
	}
	for _, tc := range cases {
		c := Confidence(tc.samples, tc.age)
		if c < 0 || c > 1 {
			t.Fatalf("Confidence(%d, %v) = %v, want in [0,1]", tc.samples, tc.age, c)
		}
	}
}

func TestFinal_BoundedZeroToOne(t *testing.T) {
	for _, health := range []float64{0, 0.5, 1} {
		for _, search := range []float64{0, 0.5, 1} {
			for _, conf := range []float64{0, 0.5, 1} {
				f := Final(health, search, conf)
				if f < 0 || f > 1 {
					t.Fatalf("Final(%v,%v,%v) = %v, want in [0,1]", health, search, conf, f)
				}
			}
		}
	}
}

func TestHealthObservation_CaptchaForcesZero(t *testing.T) {
	obs := HealthObservation(HealthProbe{OK: true, DurationMS: 10, Captcha: true})
	if obs != 0 {
		t.Fatalf("HealthObservation with captcha = %v, want 0", obs)
	}
}

func TestSearchObservation_PerfectProbeIsOne(t *testing.T) {
	obs := SearchObservation(SearchProbe{
		OK: true, DurationMS: 0, ItemsRatio: 1, HosterReachableRatio: 1, HosterSupportedRatio: 1,
	})
	if !approxEqual(obs, 1.0, 1e-9) {
		t.Fatalf("SearchObservation on a perfect probe = %v, want 1.0", obs)
	}
}
