package model

// CPUTimes holds CPU time counters from /proc/stat (in jiffies/ticks),
// ported from xtop's model.CPUTimes for the sampler's delta-based CPU%.
type CPUTimes struct {
	User      uint64
	Nice      uint64
	System    uint64
	Idle      uint64
	IOWait    uint64
	IRQ       uint64
	SoftIRQ   uint64
	Steal     uint64
	Guest     uint64
	GuestNice uint64
}

// Total returns total jiffies.
func (c CPUTimes) Total() uint64 {
	return c.User + c.Nice + c.System + c.Idle + c.IOWait +
		c.IRQ + c.SoftIRQ + c.Steal + c.Guest + c.GuestNice
}

// Active returns non-idle jiffies.
func (c CPUTimes) Active() uint64 {
	return c.Total() - c.Idle - c.IOWait
}
