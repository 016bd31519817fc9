//go:build linux

package procmem

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/procmem/pkg/procmem/procfs"
)

func TestParseSectionLine(t *testing.T) {
	c, ok := parseSectionLine("7f1234500000-7f1234600000 r-xp 00000000 08:01 131074 /usr/lib/libc.so.6")
	require.True(t, ok)
	assert.Equal(t, uint64(0x7f1234500000), c.Begin)
	assert.Equal(t, uint64(0x7f1234600000), c.End)
	assert.Equal(t, "r-xp", c.Perms)
	assert.Equal(t, "/usr/lib/libc.so.6", c.Backing)

	_, ok = parseSectionLine("not a section line")
	assert.False(t, ok)
}

func TestParseItemLine(t *testing.T) {
	tag, kb, ok := parseItemLine("Pss:                  40 kB")
	require.True(t, ok)
	assert.Equal(t, "Pss", tag)
	assert.Equal(t, uint64(40), kb)

	_, _, ok = parseItemLine("VmFlags: rd wr mr")
	assert.False(t, ok, "non-kB item lines do not match the grammar")

	_, _, ok = parseItemLine("garbage")
	assert.False(t, ok)
}

const sampleSmaps = `00400000-00452000 r-xp 00000000 08:01 123 /bin/cat
Size:                  8 kB
Rss:                   4 kB
Pss:                   4 kB
Shared_Clean:          0 kB
Shared_Dirty:          0 kB
Private_Clean:         4 kB
Private_Dirty:         0 kB
Swap:                  0 kB
7f0000000000-7f0000021000 rw-p 00000000 00:00 0 [heap]
Size:                132 kB
Rss:                 100 kB
Pss:                  90 kB
Shared_Clean:          0 kB
Shared_Dirty:          0 kB
Private_Clean:        10 kB
Private_Dirty:        90 kB
Swap:                  8 kB
`

func TestMapsParser_ParseDetail(t *testing.T) {
	fake := procfs.NewFake()
	fake.AddProcess(1, "cat\x00", "1 (cat) S ...", sampleSmaps, "")

	p := NewMapsParser()
	chunks, err := p.ParseDetail(fake, 1)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "r-xp", chunks[0].Perms)
	assert.Equal(t, uint64(4), chunks[0].Private)
	assert.Equal(t, "[heap]", chunks[1].Backing)
	assert.Equal(t, uint64(90), chunks[1].PSS)
	assert.Equal(t, uint64(8), chunks[1].Swap)
}

func TestMapsParser_ParseDetail_NotExist(t *testing.T) {
	fake := procfs.NewFake()
	p := NewMapsParser()
	_, err := p.ParseDetail(fake, 999)
	require.Error(t, err)
}

const sampleRollup = `00400000-7fffffffffff rollup
Rss:                 104 kB
Pss:                  94 kB
Pss_Anon:             90 kB
Pss_File:              4 kB
Pss_Shmem:             0 kB
Shared_Clean:          0 kB
Shared_Dirty:          0 kB
Private_Clean:        10 kB
Private_Dirty:        90 kB
Swap:                  8 kB
SwapPss:               8 kB
`

func TestMapsParser_ParseRollup(t *testing.T) {
	fake := procfs.NewFake()
	fake.AddProcess(1, "cat\x00", "1 (cat) S ...", "", sampleRollup)

	p := NewMapsParser()
	ru, err := p.ParseRollup(fake, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(90), ru.PssAnon)
	assert.Equal(t, uint64(4), ru.PssFile)
	assert.Equal(t, uint64(0), ru.PssShmem)
	assert.Equal(t, uint64(8), ru.SwapPss)
}

func TestParseDetailReader_SkipsUnparsableLines(t *testing.T) {
	p := NewMapsParser()
	r := strings.NewReader("garbage line with no section\nmore garbage\n")
	chunks, err := p.parseDetailReader(r, 1)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
