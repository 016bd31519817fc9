//go:build linux

package procfs

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_AddAndReadProcess(t *testing.T) {
	f := NewFake()
	f.AddProcess(1, "a\x00b\x00", "1 (a) S ...", "smaps-data", "rollup-data")

	cmd, err := f.Cmdline(1)
	require.NoError(t, err)
	assert.Equal(t, "a\x00b\x00", string(cmd))

	stat, err := f.StatLine(1)
	require.NoError(t, err)
	assert.Equal(t, "1 (a) S ...", string(stat))

	rc, err := f.Smaps(1)
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "smaps-data", string(b))
}

func TestFake_RemoveProcess(t *testing.T) {
	f := NewFake()
	f.AddProcess(1, "a\x00", "", "", "")
	f.RemoveProcess(1)

	_, err := f.Cmdline(1)
	require.Error(t, err)
	assert.True(t, IsNotExist(err))
}

func TestFake_SetMissingAndDenied(t *testing.T) {
	f := NewFake()
	f.AddProcess(1, "a\x00", "stat", "", "")
	f.SetMissing(1, "cmdline")
	f.SetDenied(1, "stat")

	_, err := f.Cmdline(1)
	require.Error(t, err)
	assert.True(t, IsNotExist(err))

	_, err = f.StatLine(1)
	require.Error(t, err)
	assert.True(t, IsPermission(err))
}

func TestFake_VanishAfterRead(t *testing.T) {
	f := NewFake()
	f.AddProcess(1, "a\x00", "stat", "smaps", "rollup")
	f.VanishAfterRead[1] = 1

	_, err := f.Cmdline(1)
	require.NoError(t, err, "first read is allowed through")

	_, err = f.StatLine(1)
	require.Error(t, err, "second read after the configured count simulates the PID vanishing")
	assert.True(t, IsNotExist(err))
}

func TestFake_PIDsSorted(t *testing.T) {
	f := NewFake()
	f.AddProcess(30, "", "", "", "")
	f.AddProcess(5, "", "", "", "")
	f.AddProcess(17, "", "", "", "")

	pids, err := f.PIDs()
	require.NoError(t, err)
	assert.Equal(t, []int{5, 17, 30}, pids)
}

func TestFake_ZramAttr(t *testing.T) {
	f := NewFake()
	f.SetZramDevice("zram0", map[string]string{"mm_stat": "100 50"})

	devs, err := f.ZramDevices()
	require.NoError(t, err)
	assert.Equal(t, []string{"zram0"}, devs)

	v, err := f.ZramAttr("zram0", "mm_stat")
	require.NoError(t, err)
	assert.Equal(t, "100 50", v)

	_, err = f.ZramAttr("zram0", "missing_attr")
	require.Error(t, err)
}
