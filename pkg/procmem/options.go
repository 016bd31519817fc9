//go:build linux

package procmem

import "time"

// Options is the configuration surface the core consumes from its
// caller (spec §6).
type Options struct {
	GroupBy       GroupMode
	MinDeltaKB    int
	LoopInterval  time.Duration // <=0 means one-shot
	CmdLen        int
	TopPct        float64
	Units         Units
	PIDFilter     Filters
	CollapseOther bool
	ShowCPU       bool
}

// DefaultOptions returns sane defaults matching the teacher CLI's
// defaults in spirit: one-second sampling, no filtering, KB units.
func DefaultOptions() Options {
	return Options{
		GroupBy:      GroupByExe,
		MinDeltaKB:   0,
		LoopInterval: time.Second,
		CmdLen:       200,
		TopPct:       90,
		Units:        UnitsKB,
	}
}
