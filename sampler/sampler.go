// Package sampler is the agent's Telemetry Sampler: at a fixed cadence it
// takes a non-blocking reading of host CPU% and RAM%, grounded on xtop's
// collector/cpu.go and collector/memory.go /proc parsers, reduced to the
// two scalars the spike detector and telemetry ring need.
package sampler

import (
	"strings"
	"sync"

	"github.com/ftahirops/tracewatch/model"
	"github.com/ftahirops/tracewatch/util"
)

// Sampler reads host-wide CPU% and RAM% from /proc. CPU% is computed from
// the delta between two /proc/stat reads, matching psutil's
// cpu_percent(interval=None) non-blocking convention: the first call always
// reports 0 because there is no previous sample to diff against.
type Sampler struct {
	mu   sync.Mutex
	prev model.CPUTimes
	have bool
}

// New returns a Sampler with no baseline yet.
func New() *Sampler { return &Sampler{} }

// Sample reads the current CPU% and RAM%. Any read failure substitutes 0.0
// for that metric, per the sampler's "never block the loop on a bad proc
// read" contract.
func (s *Sampler) Sample() (cpuPct, ramPct float64) {
	cpuPct = s.cpuPercent()
	ramPct = ramPercent()
	return cpuPct, ramPct
}

func (s *Sampler) cpuPercent() float64 {
	cur, ok := readCPUTimes()
	if !ok {
		return 0.0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.have {
		s.prev = cur
		s.have = true
		return 0.0
	}

	totalDelta := float64(cur.Total() - s.prev.Total())
	activeDelta := float64(cur.Active() - s.prev.Active())
	s.prev = cur
	if totalDelta <= 0 {
		return 0.0
	}
	pct := activeDelta / totalDelta * 100
	if pct < 0 {
		return 0.0
	}
	if pct > 100 {
		return 100.0
	}
	return pct
}

func readCPUTimes() (model.CPUTimes, bool) {
	lines, err := util.ReadFileLines("/proc/stat")
	if err != nil {
		return model.CPUTimes{}, false
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 8 {
			return model.CPUTimes{}, false
		}
		return model.CPUTimes{
			User:    util.ParseUint64(fields[1]),
			Nice:    util.ParseUint64(fields[2]),
			System:  util.ParseUint64(fields[3]),
			Idle:    util.ParseUint64(fields[4]),
			IOWait:  util.ParseUint64(fields[5]),
			IRQ:     util.ParseUint64(fields[6]),
			SoftIRQ: util.ParseUint64(fields[7]),
		}, true
	}
	return model.CPUTimes{}, false
}

func ramPercent() float64 {
	kv, err := util.ParseKeyValueFile("/proc/meminfo")
	if err != nil {
		return 0.0
	}
	total := parseKB(kv["MemTotal"])
	avail := parseKB(kv["MemAvailable"])
	if total == 0 {
		return 0.0
	}
	used := float64(total - avail)
	pct := used / float64(total) * 100
	if pct < 0 {
		return 0.0
	}
	if pct > 100 {
		return 100.0
	}
	return pct
}

func parseKB(s string) uint64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " kB")
	s = strings.TrimSpace(s)
	return util.ParseUint64(s)
}
