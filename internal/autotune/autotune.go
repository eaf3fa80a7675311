// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package autotune computes C3's pool slot counts from the CPU and memory
// limits actually available to the process: cgroup v2, then cgroup v1,
// then the OS-reported defaults, in that order. No cgroup-reading library
// appears anywhere in the retrieved pack, so this reads the handful of
// pseudo-files directly against stdlib os/strconv.
package autotune

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

const (
	cgroupV2CPUMax    = "/sys/fs/cgroup/cpu.max"
	cgroupV2MemoryMax = "/sys/fs/cgroup/memory.max"
	cgroupV1CPUQuota  = "/sys/fs/cgroup/cpu/cpu.cfs_quota_us"
	cgroupV1CPUPeriod = "/sys/fs/cgroup/cpu/cpu.cfs_period_us"
	cgroupV1MemLimit  = "/sys/fs/cgroup/memory/memory.limit_in_bytes"

	// fallbackMemoryPerCPUGB is the OS-default memory guess per CPU when
	// neither cgroup hierarchy nor a better signal is available.
	fallbackMemoryPerCPUGB = 2.0

	maxFastHTTPSlots = 30
	maxHeadlessSlots = 10

	// ramPerHeadlessSlotGB is the RAM budget §4.3's headless formula
	// assumes per concurrent headless context.
	ramPerHeadlessSlotGB = 0.15
)

// Limits is the detected resource ceiling this process may use.
type Limits struct {
	CPUs   float64 // fractional cgroup CPU quota, or whole runtime.NumCPU()
	Source string  // "cgroupv2", "cgroupv1", or "os"
	RAMGB  float64
}

// Slots is C3's computed pool sizing, per spec §4.3's formulas.
type Slots struct {
	FastHTTP int
	Headless int
}

// Detect reads cgroup v2, falling back to v1, then OS defaults.
func Detect() Limits {
	if lim, ok := detectCgroupV2(); ok {
		return lim
	}
	if lim, ok := detectCgroupV1(); ok {
		return lim
	}
	return detectOSDefaults()
}

// Compute applies spec §4.3's formulas to the detected limits:
// fast_http_slots ≈ CPU×3 capped at 30, headless_slots ≈
// min(CPU, RAM_GB/0.15) capped at 10.
func Compute(lim Limits) Slots {
	fast := int(lim.CPUs * 3)
	if fast < 1 {
		fast = 1
	}
	if fast > maxFastHTTPSlots {
		fast = maxFastHTTPSlots
	}

	headless := lim.CPUs
	if byRAM := lim.RAMGB / ramPerHeadlessSlotGB; byRAM < headless {
		headless = byRAM
	}
	headlessSlots := int(headless)
	if headlessSlots < 1 {
		headlessSlots = 1
	}
	if headlessSlots > maxHeadlessSlots {
		headlessSlots = maxHeadlessSlots
	}

	return Slots{FastHTTP: fast, Headless: headlessSlots}
}

func detectCgroupV2() (Limits, bool) {
	memBytes, ok := readCgroupV2Memory()
	if !ok {
		return Limits{}, false
	}
	cpus, ok := readCgroupV2CPU()
	if !ok {
		return Limits{}, false
	}
	return Limits{CPUs: cpus, RAMGB: bytesToGB(memBytes), Source: "cgroupv2"}, true
}

func readCgroupV2CPU() (float64, bool) {
	raw, err := os.ReadFile(cgroupV2CPUMax)
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(raw))
	if len(fields) != 2 || fields[0] == "max" {
		return float64(runtime.NumCPU()), true
	}
	quota, err1 := strconv.ParseFloat(fields[0], 64)
	period, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil || period <= 0 {
		return 0, false
	}
	return quota / period, true
}

func readCgroupV2Memory() (int64, bool) {
	raw, err := os.ReadFile(cgroupV2MemoryMax)
	if err != nil {
		return 0, false
	}
	s := strings.TrimSpace(string(raw))
	if s == "max" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func detectCgroupV1() (Limits, bool) {
	quotaRaw, err1 := os.ReadFile(cgroupV1CPUQuota)
	periodRaw, err2 := os.ReadFile(cgroupV1CPUPeriod)
	memRaw, err3 := os.ReadFile(cgroupV1MemLimit)
	if err1 != nil || err2 != nil || err3 != nil {
		return Limits{}, false
	}

	quota, errQ := strconv.ParseInt(strings.TrimSpace(string(quotaRaw)), 10, 64)
	period, errP := strconv.ParseInt(strings.TrimSpace(string(periodRaw)), 10, 64)
	memBytes, errM := strconv.ParseInt(strings.TrimSpace(string(memRaw)), 10, 64)
	if errQ != nil || errP != nil || errM != nil || period <= 0 {
		return Limits{}, false
	}

	cpus := float64(runtime.NumCPU())
	if quota > 0 {
		cpus = float64(quota) / float64(period)
	}

	// An unset v1 memory limit reads back as a huge sentinel (close to
	// MaxInt64), not an error; treat it the same as "no limit detected".
	const unsetSentinel = int64(1) << 62
	if memBytes <= 0 || memBytes > unsetSentinel {
		return Limits{}, false
	}

	return Limits{CPUs: cpus, RAMGB: bytesToGB(memBytes), Source: "cgroupv1"}, true
}

func detectOSDefaults() Limits {
	cpus := runtime.NumCPU()
	return Limits{
		CPUs:   float64(cpus),
		RAMGB:  float64(cpus) * fallbackMemoryPerCPUGB,
		Source: "os",
	}
}

func bytesToGB(b int64) float64 {
	return float64(b) / (1024 * 1024 * 1024)
}
