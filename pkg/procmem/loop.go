//go:build linux

package procmem

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ja7ad/procmem/pkg/procmem/procfs"
	"github.com/ja7ad/procmem/pkg/system/util"
)

// ReportRow is one rendered line of a Report: either a live group, the
// grand total, the synthetic OTHERS bucket, or a group's final "gone"
// emission (spec §4.6/§6).
type ReportRow struct {
	Annotation string // "T", "A", "O", "x", "+N K"/"-N K", or ""
	CPUPct     float64
	Summary    Summary // category totals; Number/Info carried but not shown as data columns
	Label      string
}

// Report is the immutable per-tick projection the ReportFormatter
// renders (spec §6 Outputs).
type Report struct {
	Time          time.Time
	Vitals        Vitals
	PIDsTotal     int // non-kernel candidates observed this tick
	PIDsQualified int // candidates that survived to tier-1 accounting
	Rows          []ReportRow
}

// SamplingLoop drives one tick at a time: enumerate PIDs, update
// ProcessRecords, run the two-tier cost decision per group, aggregate,
// and emit a Report (spec §4.6).
type SamplingLoop struct {
	FS     procfs.FS
	Opts   Options
	Agg    *GroupAggregator
	Parser *MapsParser
	Logger *slog.Logger

	procs         map[int]*ProcessRecord
	firstTick     bool
	othersKeys    map[string]bool
	othersDecided bool
	prevWallTotal uint64
	haveWall      bool
}

// NewSamplingLoop constructs a loop ready to call Tick on, backed by fs
// and configured per opts.
func NewSamplingLoop(fs procfs.FS, opts Options) *SamplingLoop {
	return &SamplingLoop{
		FS:         fs,
		Opts:       opts,
		Agg:        NewGroupAggregator(opts.GroupBy, opts.MinDeltaKB),
		Parser:     NewMapsParser(),
		Logger:     slog.Default(),
		procs:      make(map[int]*ProcessRecord),
		firstTick:  true,
		othersKeys: make(map[string]bool),
	}
}

// Tick performs one full sampling cycle and returns its Report. Only a
// failure to read system vitals or enumerate PIDs aborts the tick
// (spec §7); every per-PID failure is absorbed silently.
func (l *SamplingLoop) Tick(now time.Time) (Report, error) {
	vitals, err := ReadVitals(l.FS)
	if err != nil {
		return Report{}, err
	}

	candidates, err := l.FS.PIDs()
	if err != nil {
		return Report{}, fmt.Errorf("procmem: enumerate pids: %w", err)
	}

	for _, pr := range l.procs {
		pr.Alive = false
	}
	l.Agg.BeginTick()

	var wallDelta uint64
	if l.haveWall {
		wallDelta = util.DeltaU64(vitals.CPU.Total, l.prevWallTotal)
	}
	l.prevWallTotal = vitals.CPU.Total
	l.haveWall = true

	pidsTotal, pidsQualified := 0, 0
	for _, pid := range candidates {
		pr, ok := l.procs[pid]
		if !ok {
			pr = NewProcessRecord(pid)
			l.procs[pid] = pr
		}
		pr.Alive = true

		pr.ResolveIdentity(l.FS, l.Opts.GroupBy, l.Opts.CmdLen, l.Opts.PIDFilter)
		if pr.Disqualified == DisqualifyKernelProcess {
			continue // excluded from both qualified and total counts
		}
		pidsTotal++
		if pr.Disqualified != DisqualifyNone {
			continue
		}

		ru, err := l.Parser.ParseRollup(l.FS, pid)
		if err != nil {
			pr.Disqualified = disqualifyFromErr(err)
			continue
		}
		pr.LastRollup = ru
		pidsQualified++

		l.Agg.AddMember(pid, pr.GroupKey, ru)

		if err := pr.UpdateCPU(l.FS, wallDelta); err != nil {
			pr.CPUPct = 0
		}
	}

	l.runTier2()

	gone := l.Agg.FinalizeTick()

	if !l.othersDecided {
		l.decideOthers()
	}

	rows := l.buildRows(gone)

	for _, key := range gone {
		l.Agg.Remove(key)
	}

	l.sweep()

	report := Report{
		Time:          now,
		Vitals:        vitals,
		PIDsTotal:     pidsTotal,
		PIDsQualified: pidsQualified,
		Rows:          rows,
	}
	l.firstTick = false
	return report, nil
}

// runTier2 re-parses detailed maps for every group whose delta test (or
// first-observation status) warrants it, classifying chunks and
// re-summing into a fresh detail Summary. A member PID that vanishes
// between its tier-1 rollup read and this tier-2 detail read is
// dropped from the group's current member set without failing the
// group (spec §4.5/§5).
func (l *SamplingLoop) runTier2() {
	for _, g := range l.Agg.Groups() {
		if len(g.CurMembers) == 0 || !l.Agg.NeedsTier2(g) {
			continue
		}
		fresh := Summary{}
		members := make([]int, 0, len(g.CurMembers))
		for pid := range g.CurMembers {
			members = append(members, pid)
		}
		for _, pid := range members {
			if !l.FS.Exists(pid) {
				delete(g.CurMembers, pid)
				l.logger().Debug("procmem: pid vanished before tier-2 read", "pid", pid, "group", g.Key)
				continue
			}
			chunks, err := l.Parser.ParseDetail(l.FS, pid)
			if err != nil {
				delete(g.CurMembers, pid)
				l.logger().Debug("procmem: tier-2 read failed, dropping pid", "pid", pid, "group", g.Key, "err", err)
				continue
			}
			Classifier{}.ClassifyAll(chunks)
			pidSummary := Summary{}
			for _, c := range chunks {
				pidSummary.AddChunk(c)
			}
			pidSummary.Recompute()
			if pr, ok := l.procs[pid]; ok {
				pr.LastDetail = pidSummary
				pr.HasDetail = true
			}
			fresh.Add(pidSummary)
		}
		fresh.Recompute()
		l.Agg.ApplyTier2(g, fresh)
	}
}

// decideOthers computes, once (on the first tick the loop ever sees
// live groups), which group keys fall into the long tail beyond
// TopPct of cumulative ptotal. That membership is then reused by every
// later tick's OTHERS row (spec §4.6 step 5, Glossary "OTHERS bucket").
func (l *SamplingLoop) decideOthers() {
	type kv struct {
		key    string
		ptotal uint64
	}
	var kvs []kv
	var grand uint64
	for key, g := range l.Agg.Groups() {
		if len(g.CurMembers) == 0 {
			continue
		}
		kvs = append(kvs, kv{key, g.CurDetail.Ptotal})
		grand += g.CurDetail.Ptotal
	}
	if len(kvs) == 0 {
		return
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].ptotal > kvs[j].ptotal })

	if l.Opts.TopPct <= 0 || l.Opts.TopPct >= 100 {
		l.othersDecided = true
		return
	}
	cutoff := grand * uint64(l.Opts.TopPct) / 100
	var cum uint64
	for _, e := range kvs {
		cum += e.ptotal
		if cum > cutoff {
			l.othersKeys[e.key] = true
		}
	}
	l.othersDecided = true
}

// buildRows assembles the grand total, live group rows (with the
// OTHERS aggregate substituted for its tail members), and the final
// emission for groups whose member set went empty this tick.
func (l *SamplingLoop) buildRows(gone []string) []ReportRow {
	type liveEntry struct {
		key string
		g   *Group
	}
	var live []liveEntry
	grand := Summary{}

	var othersSum Summary
	othersMembers := 0

	for key, g := range l.Agg.Groups() {
		if len(g.CurMembers) == 0 {
			continue
		}
		grand.Add(combinedSummary(g))
		if l.othersKeys[key] {
			othersSum.Add(combinedSummary(g))
			othersMembers += len(g.CurMembers)
			continue
		}
		live = append(live, liveEntry{key, g})
	}
	grand.Recompute()

	sort.Slice(live, func(i, j int) bool {
		return live[i].g.CurDetail.Ptotal > live[j].g.CurDetail.Ptotal
	})

	rows := make([]ReportRow, 0, len(live)+3)
	rows = append(rows, ReportRow{
		Annotation: "T",
		Summary:    withNumber(grand, 0, 0, "total"),
		Label:      "total",
	})

	for _, e := range live {
		rows = append(rows, l.rowFor(e.key, e.g))
	}

	if othersMembers > 0 {
		othersSum.Recompute()
		rows = append(rows, ReportRow{
			Annotation: "O",
			Summary:    withNumber(othersSum, othersMembers, 0, "OTHERS"),
			Label:      "OTHERS",
		})
	}

	for _, key := range gone {
		g := l.Agg.Groups()[key]
		n := len(g.PrevMembers)
		s := Summary{
			Pswap:  g.PrevRollup.Pswap,
			ShSYSV: g.PrevDetail.ShSYSV,
			ShOth:  g.PrevDetail.ShOth,
			Stack:  g.PrevDetail.Stack,
			Text:   g.PrevDetail.Text,
			Data:   g.PrevDetail.Data,
			PSS:    g.PrevRollup.PSS,
		}
		s.Recompute()
		rows = append(rows, ReportRow{
			Annotation: "x",
			Summary:    withNumber(s, n, singleMember(g.PrevMembers), key),
			Label:      key,
		})
	}

	return rows
}

func (l *SamplingLoop) rowFor(key string, g *Group) ReportRow {
	ann := ""
	switch {
	case g.IsNew:
		ann = "A"
	case g.Tier2Fired:
		if g.DeltaPSS >= 0 {
			ann = fmt.Sprintf("+%d K", g.DeltaPSS)
		} else {
			ann = fmt.Sprintf("%d K", g.DeltaPSS)
		}
	}

	cpuPct := 0.0
	if l.Opts.ShowCPU {
		for pid := range g.CurMembers {
			if pr, ok := l.procs[pid]; ok {
				cpuPct += pr.CPUPct
			}
		}
	}

	s := combinedSummary(g)
	n := len(g.CurMembers)
	return ReportRow{
		Annotation: ann,
		CPUPct:     cpuPct,
		Summary:    withNumber(s, n, singleMember(g.CurMembers), key),
		Label:      key,
	}
}

// combinedSummary builds the displayed Summary for a live group: the
// category breakdown (shSYSV/shOth/stack/text/data, ptotal) comes from
// the detail summary (fresh this tick only if tier-2 fired), while
// pss/pswap are always taken from the rollup summary (spec §4.5, and
// the mismatch documented in spec.md Design Notes §9).
func combinedSummary(g *Group) Summary {
	s := Summary{
		Pswap:  g.CurRollup.Pswap,
		ShSYSV: g.CurDetail.ShSYSV,
		ShOth:  g.CurDetail.ShOth,
		Stack:  g.CurDetail.Stack,
		Text:   g.CurDetail.Text,
		Data:   g.CurDetail.Data,
		PSS:    g.CurRollup.PSS,
	}
	s.Recompute()
	return s
}

// withNumber fills Summary.Number per spec §3: the member count, or the
// negated PID when the group has exactly one member (singlePID is that
// PID; it is ignored when members != 1).
func withNumber(s Summary, members, singlePID int, info string) Summary {
	if members == 1 {
		s.Number = -singlePID
	} else {
		s.Number = members
	}
	s.Info = info
	return s
}

func singleMember(set map[int]struct{}) int {
	for pid := range set {
		return pid
	}
	return 0
}

func (l *SamplingLoop) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// sweep drops ProcessRecords that were not re-observed this tick (spec
// §4.4 lifecycle, §5 "no global caches grow unboundedly").
func (l *SamplingLoop) sweep() {
	for pid, pr := range l.procs {
		if !pr.Alive {
			delete(l.procs, pid)
		}
	}
}
