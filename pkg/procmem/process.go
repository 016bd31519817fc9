//go:build linux

package procmem

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ja7ad/procmem/pkg/procmem/procfs"
	"github.com/ja7ad/procmem/pkg/system/util"
)

// knownInterpreters is the fixed set of script interpreters that trigger
// the "<interpreter>-><script>" executable rewrite (spec §4.4).
var knownInterpreters = map[string]bool{
	"python": true, "python2": true, "python3": true,
	"perl": true, "bash": true, "sh": true, "ksh": true, "zsh": true, "ruby": true,
}

// ProcessRecord is the per-live-PID state the SamplingLoop maintains.
type ProcessRecord struct {
	PID int

	ExeBasename string // resolved effective executable
	Command     string // truncated, space-joined command line
	GroupKey    string

	IdentityResolved bool

	LastRollup Rollup
	LastDetail Summary
	HasDetail  bool

	Alive        bool
	Disqualified DisqualifyReason

	cpuTicksPrev uint64
	cpuTicksSeen bool
	CPUPct       float64
}

// NewProcessRecord creates a fresh, unresolved record for a just-observed PID.
func NewProcessRecord(pid int) *ProcessRecord {
	return &ProcessRecord{PID: pid, Alive: true}
}

// Filters is the caller-supplied allow-list from the Configuration
// Surface (spec §6 pid_filter).
type Filters struct {
	PIDs  map[string]bool
	Exes  map[string]bool
}

func (f Filters) empty() bool { return len(f.PIDs) == 0 && len(f.Exes) == 0 }

// ResolveIdentity reads the PID's cmdline and fills ExeBasename, Command,
// and GroupKey. It disqualifies kernel threads (empty cmdline) and
// filtered-out PIDs. Safe to call repeatedly; a no-op once resolved,
// except filtering, which is re-checked every tick against the current
// allow-list (cheap, and the allow-list does not change mid-run in
// practice, but re-checking costs nothing and avoids staleness bugs).
func (pr *ProcessRecord) ResolveIdentity(fs procfs.FS, groupMode GroupMode, cmdLen int, filters Filters) {
	if !pr.IdentityResolved {
		raw, err := fs.Cmdline(pr.PID)
		if err != nil {
			pr.Disqualified = disqualifyFromErr(translateErr(err))
			return
		}
		args := splitCmdline(raw)
		if len(args) == 0 {
			pr.Disqualified = DisqualifyKernelProcess
			return
		}

		base0 := stripNonWord(filepath.Base(args[0]))
		exe := base0
		if knownInterpreters[base0] && len(args) > 1 {
			scriptBase := stripNonWord(filepath.Base(args[1]))
			exe = base0 + "->" + scriptBase
		}
		pr.ExeBasename = exe
		pr.Command = truncate(strings.Join(args, " "), cmdLen)
		pr.IdentityResolved = true
	}

	if !filters.empty() {
		pidStr := strconv.Itoa(pr.PID)
		if !filters.PIDs[pidStr] && !filters.Exes[pr.ExeBasename] {
			pr.Disqualified = DisqualifyFilteredByArgs
			return
		}
	}
	pr.Disqualified = DisqualifyNone
	pr.GroupKey = pr.groupKey(groupMode)
}

func (pr *ProcessRecord) groupKey(mode GroupMode) string {
	switch mode {
	case GroupByCmd:
		return pr.Command
	case GroupByPID:
		return strconv.Itoa(pr.PID)
	default:
		return pr.ExeBasename
	}
}

// UpdateCPU computes the CPU percentage for this tick from the PID's
// cumulative utime+stime ticks and the system wall-tick delta (spec
// §4.4). The first observation yields 0.
func (pr *ProcessRecord) UpdateCPU(fs procfs.FS, wallTicksDelta uint64) error {
	raw, err := fs.StatLine(pr.PID)
	if err != nil {
		return translateErr(err)
	}
	utime, stime, err := parseStatTicks(raw)
	if err != nil {
		return err
	}
	ticks := utime + stime
	if !pr.cpuTicksSeen {
		pr.cpuTicksPrev = ticks
		pr.cpuTicksSeen = true
		pr.CPUPct = 0
		return nil
	}
	delta := util.DeltaU64(ticks, pr.cpuTicksPrev)
	pr.cpuTicksPrev = ticks
	if wallTicksDelta == 0 {
		pr.CPUPct = 0
		return nil
	}
	pr.CPUPct = float64(delta) / float64(wallTicksDelta) * 100
	return nil
}

// splitCmdline splits a null-separated argv blob, dropping the trailing
// empty element the terminating NUL produces.
func splitCmdline(raw []byte) []string {
	s := string(raw)
	s = strings.TrimRight(s, "\x00")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\x00")
}

func stripNonWord(s string) string {
	isWord := func(r rune) bool {
		return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	}
	return strings.TrimFunc(s, func(r rune) bool { return !isWord(r) })
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

// parseStatTicks extracts utime (field 14) and stime (field 15) from a
// raw /proc/<pid>/stat line. The comm field (2nd) is parenthesized and
// may itself contain spaces or parens, so everything up to and
// including the last ") " (pid and comm) is skipped, matching the layout
// documented for /proc/<pid>/stat: what remains starts with state
// (field 3), so fields 14/15 are fields[11]/fields[12] of it.
func parseStatTicks(raw []byte) (utime, stime uint64, err error) {
	line := string(raw)
	i := strings.LastIndex(line, ") ")
	if i < 0 {
		return 0, 0, fmt.Errorf("procmem: malformed stat line")
	}
	fields := strings.Fields(line[i+2:])
	if len(fields) < 13 {
		return 0, 0, fmt.Errorf("procmem: short stat line")
	}
	utime, err = strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	stime, err = strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return utime, stime, nil
}

func disqualifyFromErr(err error) DisqualifyReason {
	switch err {
	case errFileMissing:
		return DisqualifyFileMissing
	case errPermissionDenied:
		return DisqualifyPermissionDenied
	default:
		return DisqualifyFileMissing
	}
}
