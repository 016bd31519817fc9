// Package procmem implements the proportional memory/CPU sampling and
// aggregation core: periodic /proc discovery, per-mapping classification,
// and group roll-ups split by executable, command line, or PID.
package procmem

import "fmt"

// Category is the closed set of classification buckets a Chunk can fall
// into. It mirrors the categories a detailed /proc/<pid>/smaps mapping is
// reduced to once the Classifier has run.
type Category int

const (
	CategoryShSYSV Category = iota
	CategoryShOth
	CategoryStack
	CategoryText
	CategoryData
)

func (c Category) String() string {
	switch c {
	case CategoryShSYSV:
		return "shSYSV"
	case CategoryShOth:
		return "shOth"
	case CategoryStack:
		return "stack"
	case CategoryText:
		return "text"
	case CategoryData:
		return "data"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Chunk is one mapping parsed from a PID's detailed memory-map file,
// classified in place by the Classifier.
type Chunk struct {
	Begin, End uint64
	Perms      string // 4 chars: r/w/x/-, r/w/x/-, r/w/x/-, s/p
	Offset     uint64
	Backing    string

	Size, RSS, PSS           uint64
	Shared, Private, Swap    uint64

	Category Category
	ESize    uint64
}

// isShared reports whether the sharing bit (perms[3]) is 's'.
func (c Chunk) isShared() bool { return len(c.Perms) == 4 && c.Perms[3] == 's' }

// Rollup is one parse of a PID's smaps_rollup summary file.
type Rollup struct {
	PssAnon  uint64
	PssFile  uint64
	PssShmem uint64
	SwapPss  uint64
}

// Summary is an additive record of category totals for a PID or a Group.
// Ptotal is the sum of every category field except Pswap (see Recompute).
type Summary struct {
	Pswap   uint64
	ShSYSV  uint64
	ShOth   uint64
	Stack   uint64
	Text    uint64
	Data    uint64
	Ptotal  uint64
	PSS     uint64

	// Number is the count of contributing processes, or the negated PID
	// for a group with exactly one member (in every grouping mode).
	Number int
	Info   string
}

// Recompute sets Ptotal to the sum of every category field except Pswap,
// enforcing the invariant ptotal == shSYSV+shOth+stack+text+data.
func (s *Summary) Recompute() {
	s.Ptotal = s.ShSYSV + s.ShOth + s.Stack + s.Text + s.Data
}

// Add accumulates another Summary's category fields into s (used when
// rolling per-PID detail summaries up into a Group's detail summary).
func (s *Summary) Add(o Summary) {
	s.Pswap += o.Pswap
	s.ShSYSV += o.ShSYSV
	s.ShOth += o.ShOth
	s.Stack += o.Stack
	s.Text += o.Text
	s.Data += o.Data
	s.PSS += o.PSS
	s.Recompute()
}

// AddChunk folds one classified Chunk into the Summary's category totals.
func (s *Summary) AddChunk(c Chunk) {
	switch c.Category {
	case CategoryShSYSV:
		s.ShSYSV += c.ESize
	case CategoryShOth:
		s.ShOth += c.ESize
	case CategoryStack:
		s.Stack += c.ESize
	case CategoryText:
		s.Text += c.ESize
	case CategoryData:
		s.Data += c.ESize
	}
	s.PSS += c.PSS
}

// AddRollup folds a Rollup's semantic mapping into the Summary: anon->data,
// file->text, shmem->shOth, swap_pss->pswap (see spec §3 Rollup mapping).
func (s *Summary) AddRollup(r Rollup) {
	s.Data += r.PssAnon
	s.Text += r.PssFile
	s.ShOth += r.PssShmem
	s.Pswap += r.SwapPss
	s.PSS += r.PssAnon + r.PssFile + r.PssShmem
	s.Recompute()
}

// GroupMode selects the key used to roll processes up into Groups.
type GroupMode int

const (
	GroupByExe GroupMode = iota
	GroupByCmd
	GroupByPID
)

func (m GroupMode) String() string {
	switch m {
	case GroupByExe:
		return "exe"
	case GroupByCmd:
		return "cmd"
	case GroupByPID:
		return "pid"
	default:
		return "unknown"
	}
}

// Units selects the numeric presentation used by the ReportFormatter.
type Units int

const (
	UnitsKB Units = iota
	UnitsMB
	UnitsMiB
	UnitsHuman
)
