// Package procinfo answers "what is PID N" questions the ranker and RCA
// client need: a process's name, command line, and non-blocking CPU%/RAM%,
// read from /proc the way xtop's collector/process.go and
// ja7ad-consumption's proc.ReadProcStat do it.
package procinfo

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ftahirops/tracewatch/util"
)

// Info is a point-in-time snapshot of one process's identity and resource
// usage.
type Info struct {
	PID     int32
	Name    string
	Cmdline string
	CPUPct  float64
	RAMPct  float64
}

// clockTicks is the jiffies-per-second used to convert /proc/[pid]/stat CPU
// time fields into seconds. 100 is the near-universal Linux default; xtop
// and ja7ad-consumption both hardcode or default to the same value rather
// than shelling out to getconf.
const clockTicks = 100

type cpuSample struct {
	at    time.Time
	ticks uint64 // utime+stime, in jiffies
}

// Reader computes non-blocking CPU% the way psutil's cpu_percent(interval=
// None) does: it remembers the previous (time, cpu-ticks) pair per PID and
// divides the delta in CPU time by the delta in wall time on the next call.
// The first call for a PID always reports 0, exactly like psutil's first
// call with no stored baseline.
type Reader struct {
	mu         sync.Mutex
	prev       map[int32]cpuSample
	totalRAMKB uint64
}

// NewReader constructs a Reader. totalRAMKB is the host's total memory (from
// /proc/meminfo's MemTotal), used as the denominator for RAM%.
func NewReader(totalRAMKB uint64) *Reader {
	return &Reader{prev: make(map[int32]cpuSample), totalRAMKB: totalRAMKB}
}

// Lookup returns identity and usage for pid. If /proc/[pid]/stat cannot be
// read or parsed (process exited mid-read, permission denied) it returns a
// zero-valued Info and false, matching the collector's "drop and move on"
// tolerance for races against process exit. An unreadable cmdline or status
// file leaves Cmdline empty and RAMPct at 0 and still returns true.
func (r *Reader) Lookup(pid int32) (Info, bool) {
	dir := fmt.Sprintf("/proc/%d", pid)

	name, ticks, ok := readStat(dir)
	if !ok {
		return Info{}, false
	}
	cmdline := readCmdline(dir)
	rssKB := readRSSKB(dir)

	now := time.Now()
	cpuPct := 0.0
	r.mu.Lock()
	if p, seen := r.prev[pid]; seen {
		elapsed := now.Sub(p.at).Seconds()
		if elapsed > 0 && ticks >= p.ticks {
			deltaSeconds := float64(ticks-p.ticks) / clockTicks
			cpuPct = clamp((deltaSeconds/elapsed)*100, 0, 100*maxCPUCount())
		}
	}
	r.prev[pid] = cpuSample{at: now, ticks: ticks}
	r.mu.Unlock()

	ramPct := 0.0
	if r.totalRAMKB > 0 {
		ramPct = clamp(float64(rssKB)/float64(r.totalRAMKB)*100, 0, 100)
	}

	return Info{PID: pid, Name: name, Cmdline: cmdline, CPUPct: cpuPct, RAMPct: ramPct}, true
}

// Forget drops a PID's cached CPU baseline. The collector calls this once a
// PID has aged out of every ring so the map doesn't grow unbounded across a
// long-lived agent process.
func (r *Reader) Forget(pid int32) {
	r.mu.Lock()
	delete(r.prev, pid)
	r.mu.Unlock()
}

func readStat(dir string) (comm string, ticks uint64, ok bool) {
	content, err := util.ReadFileString(dir + "/stat")
	if err != nil {
		return "", 0, false
	}
	open := strings.Index(content, "(")
	close := strings.LastIndex(content, ")")
	if open < 0 || close < 0 || close < open {
		return "", 0, false
	}
	comm = content[open+1 : close]
	rest := strings.Fields(content[close+2:])
	if len(rest) < 15 {
		return "", 0, false
	}
	utime := util.ParseUint64(rest[11])
	stime := util.ParseUint64(rest[12])
	return comm, utime + stime, true
}

func readCmdline(dir string) string {
	data, err := os.ReadFile(dir + "/cmdline")
	if err != nil || len(data) == 0 {
		return ""
	}
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	return strings.Join(parts, " ")
}

func readRSSKB(dir string) uint64 {
	kv, err := util.ParseKeyValueFile(dir + "/status")
	if err != nil {
		return 0
	}
	fields := strings.Fields(kv["VmRSS"])
	if len(fields) == 0 {
		return 0
	}
	v, _ := strconv.ParseUint(fields[0], 10, 64)
	return v
}

func maxCPUCount() float64 {
	n := 1
	if data, err := os.ReadFile("/proc/cpuinfo"); err == nil {
		n = strings.Count(string(data), "processor\t:")
		if n == 0 {
			n = 1
		}
	}
	return float64(n)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
