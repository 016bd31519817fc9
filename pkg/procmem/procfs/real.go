//go:build linux

package procfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Real is the production FS backed by the actual kernel /proc and /sys
// filesystems.
type Real struct {
	ProcRoot string
	SysRoot  string
}

// NewReal returns an FS rooted at the standard /proc and /sys mounts.
func NewReal() *Real {
	return &Real{ProcRoot: "/proc", SysRoot: "/sys"}
}

type fsErr struct {
	notExist   bool
	permission bool
	inner      error
}

func (e *fsErr) Error() string      { return e.inner.Error() }
func (e *fsErr) Unwrap() error      { return e.inner }
func (e *fsErr) NotExist() bool     { return e.notExist }
func (e *fsErr) Permission() bool   { return e.permission }

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	return &fsErr{
		notExist:   os.IsNotExist(err),
		permission: os.IsPermission(err),
		inner:      err,
	}
}

func (r *Real) PIDs() ([]int, error) {
	entries, err := os.ReadDir(r.ProcRoot)
	if err != nil {
		return nil, wrapErr(err)
	}
	pids := make([]int, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// Exists probes liveness with signal 0 (unix.Kill), which distinguishes
// "gone" (ESRCH) from "alive but not ours to read" (EPERM) without
// opening any file — cheaper than a failed stat when a group has many
// members and only a few vanished mid-tick.
func (r *Real) Exists(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

func (r *Real) Cmdline(pid int) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(r.ProcRoot, strconv.Itoa(pid), "cmdline"))
	return b, wrapErr(err)
}

func (r *Real) StatLine(pid int) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(r.ProcRoot, strconv.Itoa(pid), "stat"))
	return b, wrapErr(err)
}

func (r *Real) Smaps(pid int) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(r.ProcRoot, strconv.Itoa(pid), "smaps"))
	if err != nil {
		return nil, wrapErr(err)
	}
	return f, nil
}

func (r *Real) SmapsRollup(pid int) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(r.ProcRoot, strconv.Itoa(pid), "smaps_rollup"))
	if err != nil {
		return nil, wrapErr(err)
	}
	return f, nil
}

func (r *Real) MemInfo() ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(r.ProcRoot, "meminfo"))
	return b, wrapErr(err)
}

func (r *Real) SystemStat() ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(r.ProcRoot, "stat"))
	return b, wrapErr(err)
}

func (r *Real) ZramDevices() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.SysRoot, "block", "zram*"))
	if err != nil {
		return nil, fmt.Errorf("procfs: glob zram devices: %w", err)
	}
	devs := make([]string, 0, len(matches))
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.IsDir() {
			devs = append(devs, filepath.Base(m))
		}
	}
	return devs, nil
}

func (r *Real) ZramAttr(dev, attr string) (string, error) {
	b, err := os.ReadFile(filepath.Join(r.SysRoot, "block", dev, attr))
	if err != nil {
		return "", wrapErr(err)
	}
	return strings.TrimSpace(string(b)), nil
}
