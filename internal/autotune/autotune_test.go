package autotune

import "testing"

func TestCompute_CapsFastHTTPAt30(t *testing.T) {
	slots := Compute(Limits{CPUs: 64, RAMGB: 256})
	if slots.FastHTTP != maxFastHTTPSlots {
		t.Fatalf("FastHTTP = %d, want the %d cap", slots.FastHTTP, maxFastHTTPSlots)
	}
}

func TestCompute_CapsHeadlessAt10(t *testing.T) {
	slots := Compute(Limits{CPUs: 64, RAMGB: 256})
	if slots.Headless != maxHeadlessSlots {
		t.Fatalf("Headless = %d, want the %d cap", slots.Headless, maxHeadlessSlots)
	}
}

func TestCompute_HeadlessBoundedByRAM(t *testing.T) {
	// 8 CPUs but only 0.6 GB of RAM allows floor(0.6/0.15) = 4 headless slots.
	slots := Compute(Limits{CPUs: 8, RAMGB: 0.6})
	if slots.Headless != 4 {
		t.Fatalf("Headless = %d, want 4 (RAM-bound)", slots.Headless)
	}
}

func TestCompute_FastHTTPTriplesCPU(t *testing.T) {
	slots := Compute(Limits{CPUs: 2, RAMGB: 100})
	if slots.FastHTTP != 6 {
		t.Fatalf("FastHTTP = %d, want 6 (2 CPUs * 3)", slots.FastHTTP)
	}
}

func TestCompute_NeverReturnsZeroSlots(t *testing.T) {
	slots := Compute(Limits{CPUs: 0, RAMGB: 0})
	if slots.FastHTTP < 1 || slots.Headless < 1 {
		t.Fatalf("slots = %+v, want at least 1 of each even with zero detected limits", slots)
	}
}

func TestDetect_ReturnsPositiveLimits(t *testing.T) {
	// Whichever source Detect lands on (cgroup v2, cgroup v1, or the OS
	// defaults), the limits it reports must be positive.
	lim := Detect()
	if lim.CPUs <= 0 {
		t.Fatalf("CPUs = %v, want > 0 regardless of detection source", lim.CPUs)
	}
	if lim.RAMGB <= 0 {
		t.Fatalf("RAMGB = %v, want > 0 regardless of detection source", lim.RAMGB)
	}
}
