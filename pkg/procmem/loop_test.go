//go:build linux

package procmem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/procmem/pkg/procmem/procfs"
)

func rollupFile(pssAnon, pssFile, pssShmem, swapPss uint64) string {
	return "00400000-7fffffffffff rollup\n" +
		kbLine("Rss", pssAnon+pssFile) +
		kbLine("Pss", pssAnon+pssFile+pssShmem) +
		kbLine("Pss_Anon", pssAnon) +
		kbLine("Pss_File", pssFile) +
		kbLine("Pss_Shmem", pssShmem) +
		kbLine("Swap", swapPss) +
		kbLine("SwapPss", swapPss)
}

func kbLine(tag string, v uint64) string {
	return tag + ":                  " + itoa(v) + " kB\n"
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	digits := []byte{}
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}

func smapsFile() string {
	return "00400000-00452000 r-xp 00000000 08:01 123 /bin/prog\n" +
		kbLine("Size", 8) + kbLine("Rss", 4) + kbLine("Pss", 4) +
		kbLine("Shared_Clean", 0) + kbLine("Shared_Dirty", 0) +
		kbLine("Private_Clean", 4) + kbLine("Private_Dirty", 0) + kbLine("Swap", 0) +
		"7f0000000000-7f0000021000 rw-p 00000000 00:00 0 [heap]\n" +
		kbLine("Size", 132) + kbLine("Rss", 100) + kbLine("Pss", 90) +
		kbLine("Shared_Clean", 0) + kbLine("Shared_Dirty", 0) +
		kbLine("Private_Clean", 10) + kbLine("Private_Dirty", 90) + kbLine("Swap", 8)
}

func newTestLoop(fs procfs.FS, opts Options) *SamplingLoop {
	l := NewSamplingLoop(fs, opts)
	return l
}

func TestTick_GrandTotalPtotalInvariant(t *testing.T) {
	fake := procfs.NewFake()
	fake.SetMemInfo(sampleMemInfo)
	fake.SetSystemStat(sampleSystemStat)
	fake.AddProcess(10, "progA\x00", "10 (progA) S 1 10 10 0 -1 4194304 0 0 0 0 10 5 0 0 20 0 4 0 0 0 0 0", smapsFile(), rollupFile(90, 4, 0, 0))
	fake.AddProcess(20, "progB\x00", "20 (progB) S 1 20 20 0 -1 4194304 0 0 0 0 10 5 0 0 20 0 4 0 0 0 0 0", smapsFile(), rollupFile(90, 4, 0, 0))

	opts := DefaultOptions()
	opts.TopPct = 100
	l := newTestLoop(fake, opts)

	report, err := l.Tick(time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, report.Rows)

	total := report.Rows[0]
	assert.Equal(t, "total", total.Label)
	assert.Equal(t, total.Summary.ShSYSV+total.Summary.ShOth+total.Summary.Stack+total.Summary.Text+total.Summary.Data, total.Summary.Ptotal)
}

func TestTick_NewGroupAlwaysRunsTier2(t *testing.T) {
	fake := procfs.NewFake()
	fake.SetMemInfo(sampleMemInfo)
	fake.SetSystemStat(sampleSystemStat)
	fake.AddProcess(10, "progA\x00", "10 (progA) S 1 10 10 0 -1 4194304 0 0 0 0 10 5 0 0 20 0 4 0 0 0 0 0", smapsFile(), rollupFile(90, 4, 0, 0))

	opts := DefaultOptions()
	opts.TopPct = 100
	l := newTestLoop(fake, opts)

	report, err := l.Tick(time.Now())
	require.NoError(t, err)
	var row ReportRow
	for _, r := range report.Rows {
		if r.Label == "progA" {
			row = r
		}
	}
	require.Equal(t, "progA", row.Label)
	assert.Equal(t, "A", row.Annotation, "first observation of a group is annotated new")
	assert.Greater(t, row.Summary.Ptotal, uint64(0))
}

func TestTick_StableGroupSkipsTier2WhenDeltaSmall(t *testing.T) {
	fake := procfs.NewFake()
	fake.SetMemInfo(sampleMemInfo)
	fake.SetSystemStat(sampleSystemStat)
	statLine := "10 (progA) S 1 10 10 0 -1 4194304 0 0 0 0 10 5 0 0 20 0 4 0 0 0 0 0"
	fake.AddProcess(10, "progA\x00", statLine, smapsFile(), rollupFile(90, 4, 0, 0))

	opts := DefaultOptions()
	opts.TopPct = 100
	opts.MinDeltaKB = -1000 // huge absolute threshold: small deltas never re-trigger tier-2
	l := newTestLoop(fake, opts)

	_, err := l.Tick(time.Now())
	require.NoError(t, err)

	// Second tick: identical rollup, no reason to re-fire tier-2.
	_, err = l.Tick(time.Now())
	require.NoError(t, err)

	g := l.Agg.Groups()["progA"]
	require.NotNil(t, g)
	assert.False(t, g.Tier2Fired, "unchanged rollup under a wide delta threshold should not refire tier-2")
}

func TestTick_GroupGoneEmitsFinalRowThenIsRemoved(t *testing.T) {
	fake := procfs.NewFake()
	fake.SetMemInfo(sampleMemInfo)
	fake.SetSystemStat(sampleSystemStat)
	statLine := "10 (progA) S 1 10 10 0 -1 4194304 0 0 0 0 10 5 0 0 20 0 4 0 0 0 0 0"
	fake.AddProcess(10, "progA\x00", statLine, smapsFile(), rollupFile(90, 4, 0, 0))

	opts := DefaultOptions()
	opts.TopPct = 100
	l := newTestLoop(fake, opts)

	_, err := l.Tick(time.Now())
	require.NoError(t, err)

	fake.RemoveProcess(10)
	report, err := l.Tick(time.Now())
	require.NoError(t, err)

	var found bool
	for _, r := range report.Rows {
		if r.Label == "progA" && r.Annotation == "x" {
			found = true
		}
	}
	assert.True(t, found, "an exited group must be emitted once more with the gone annotation")

	report2, err := l.Tick(time.Now())
	require.NoError(t, err)
	for _, r := range report2.Rows {
		assert.NotEqual(t, "progA", r.Label, "a gone group must not reappear after its final emission")
	}
}

func TestTick_VanishedPIDDuringTier2IsDroppedNotFatal(t *testing.T) {
	fake := procfs.NewFake()
	fake.SetMemInfo(sampleMemInfo)
	fake.SetSystemStat(sampleSystemStat)
	statLine := "10 (progA) S 1 10 10 0 -1 4194304 0 0 0 0 10 5 0 0 20 0 4 0 0 0 0 0"
	fake.AddProcess(10, "progA\x00", statLine, smapsFile(), rollupFile(90, 4, 0, 0))
	fake.VanishAfterRead[10] = 2 // cmdline + rollup reads succeed, the tier-2 smaps read does not

	opts := DefaultOptions()
	opts.TopPct = 100
	l := newTestLoop(fake, opts)

	report, err := l.Tick(time.Now())
	require.NoError(t, err, "a per-PID vanish race must not abort the tick")
	assert.NotNil(t, report)
}
