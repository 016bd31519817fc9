//go:build linux

package procfs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReal_PIDsIncludesSelf(t *testing.T) {
	r := NewReal()
	pids, err := r.PIDs()
	require.NoError(t, err)
	assert.Contains(t, pids, os.Getpid())
}

func TestReal_ExistsSelfAndBogus(t *testing.T) {
	r := NewReal()
	assert.True(t, r.Exists(os.Getpid()))
	assert.False(t, r.Exists(1<<30))
}

func TestReal_CmdlineSelf(t *testing.T) {
	r := NewReal()
	b, err := r.Cmdline(os.Getpid())
	require.NoError(t, err)
	assert.NotEmpty(t, b)
}

func TestReal_MemInfo(t *testing.T) {
	r := NewReal()
	b, err := r.MemInfo()
	require.NoError(t, err)
	assert.Contains(t, string(b), "MemTotal")
}

func TestReal_SystemStat(t *testing.T) {
	r := NewReal()
	b, err := r.SystemStat()
	require.NoError(t, err)
	assert.Contains(t, string(b), "cpu ")
}

func TestReal_CmdlineNoSuchPid(t *testing.T) {
	r := NewReal()
	_, err := r.Cmdline(1 << 30)
	require.Error(t, err)
	assert.True(t, IsNotExist(err))
}

func TestReal_ZramDevicesNoError(t *testing.T) {
	r := NewReal()
	_, err := r.ZramDevices()
	require.NoError(t, err, "absence of zram devices is not an error")
}
