//go:build linux

package procmem

import (
	"fmt"
	"strings"

	"github.com/ja7ad/procmem/pkg/types"
)

// ReportFormatter is a pure projection from a Report to an ordered,
// annotated text table (spec §4.7). It reads Report/ReportRow fields
// only; it never mutates SamplingLoop state.
type ReportFormatter struct {
	Units         Units
	CollapseOther bool
	ShowCPU       bool
	Debug         bool // when true, emit the pss column
}

const (
	widthKB = 11
	widthMB = 8
)

// formatKB implements the KB/MB/mB/human presentation modes; human
// reuses the teacher's types.Bytes.Humanized magnitude-step
// idiom, adapted to a kB-denominated input instead of raw bytes.
func (f ReportFormatter) formatKB(kb uint64) string {
	switch f.Units {
	case UnitsMB:
		return fmt.Sprintf("%.1fM", float64(kb)/1024)
	case UnitsMiB:
		return fmt.Sprintf("%.1fm", float64(kb)/1000)
	case UnitsHuman:
		return humanizeKB(kb)
	default:
		return fmt.Sprintf("%d", kb)
	}
}

// humanizeKB defers to types.Bytes' magnitude-step humanizer, converting
// the kB-denominated value the /proc layer works in back to bytes first.
func humanizeKB(kb uint64) string {
	return types.Bytes(kb * 1024).Humanized()
}

func (f ReportFormatter) width() int {
	if f.Units == UnitsKB {
		return widthKB
	}
	return widthMB
}

func (f ReportFormatter) pad(s string) string {
	w := f.width()
	if len(s) >= w {
		return s
	}
	return strings.Repeat(" ", w-len(s)) + s
}

// Header returns the column header line.
func (f ReportFormatter) Header() string {
	var cols []string
	if f.ShowCPU {
		cols = append(cols, f.pad("CPU%"))
	}
	cols = append(cols, f.pad("swap"))
	if f.CollapseOther {
		cols = append(cols, f.pad("other"))
	} else {
		cols = append(cols, f.pad("shSYSV"), f.pad("shOth"), f.pad("stack"), f.pad("text"))
	}
	cols = append(cols, f.pad("data"), f.pad("ptotal"))
	if f.Debug {
		cols = append(cols, f.pad("pss"))
	}
	cols = append(cols, " ", "key/info")
	return strings.Join(cols, " ")
}

// Row renders one ReportRow: numeric columns (fixed width), the
// annotation column, then the key/info label. Number and Info are
// never emitted as data columns (spec §4.7 exclusions).
func (f ReportFormatter) Row(row ReportRow) string {
	s := row.Summary
	var cols []string
	if f.ShowCPU {
		cols = append(cols, f.pad(fmt.Sprintf("%.1f", row.CPUPct)))
	}
	cols = append(cols, f.pad(f.formatKB(s.Pswap)))
	if f.CollapseOther {
		other := s.ShSYSV + s.ShOth + s.Stack + s.Text
		cols = append(cols, f.pad(f.formatKB(other)))
	} else {
		cols = append(cols, f.pad(f.formatKB(s.ShSYSV)), f.pad(f.formatKB(s.ShOth)),
			f.pad(f.formatKB(s.Stack)), f.pad(f.formatKB(s.Text)))
	}
	cols = append(cols, f.pad(f.formatKB(s.Data)), f.pad(f.formatKB(s.Ptotal)))
	if f.Debug {
		cols = append(cols, f.pad(f.formatKB(s.PSS)))
	}
	cols = append(cols, row.Annotation, row.Label)
	return strings.Join(cols, " ")
}

// Leader renders the time/vitals/PID-count line shown above the table.
func (f ReportFormatter) Leader(r Report) string {
	zram := ""
	if r.Vitals.Zram != nil && len(r.Vitals.Zram.Devices) > 0 {
		d := r.Vitals.Zram.Devices[0]
		zram = fmt.Sprintf(" zram=%s:%.2fx", d.Name, d.Ratio)
	}
	return fmt.Sprintf("%s  mem_total=%s  mem_avail=%s  procs=%d/%d%s",
		r.Time.Format("2006-01-02 15:04:05"),
		f.formatKB(r.Vitals.MemTotalKB), f.formatKB(r.Vitals.MemAvailKB),
		r.PIDsQualified, r.PIDsTotal, zram)
}

// Format renders the full table: leader line, header, then every row
// in Report order (grand total first, per spec §4.6 step 6).
func (f ReportFormatter) Format(r Report) string {
	var b strings.Builder
	b.WriteString(f.Leader(r))
	b.WriteByte('\n')
	b.WriteString(f.Header())
	b.WriteByte('\n')
	for _, row := range r.Rows {
		b.WriteString(f.Row(row))
		b.WriteByte('\n')
	}
	return b.String()
}
