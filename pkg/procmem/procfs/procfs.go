//go:build linux

// Package procfs abstracts the handful of /proc and /sys files the
// sampling core reads, so tests can substitute an in-memory fake with
// race-injection hooks instead of touching the real kernel filesystem
// (see spec.md Design Notes §9).
package procfs

import "io"

// FS is the read-only surface the procmem core needs from /proc and
// /sys. Per-file read failures of "doesn't exist anymore" and "exists
// but we can't read it" are returned as errors that IsNotExist and
// IsPermission recognise, so callers can apply the disqualification
// policy from spec §7 uniformly.
type FS interface {
	// PIDs enumerates the numeric entries under /proc.
	PIDs() ([]int, error)

	// Exists is a cheap liveness probe, used to skip an expensive detail
	// read for a PID that has already vanished this tick.
	Exists(pid int) bool

	// Cmdline returns the raw, null-separated argv of a PID.
	Cmdline(pid int) ([]byte, error)

	// StatLine returns the raw contents of /proc/<pid>/stat.
	StatLine(pid int) ([]byte, error)

	// Smaps opens /proc/<pid>/smaps for streaming parse.
	Smaps(pid int) (io.ReadCloser, error)

	// SmapsRollup opens /proc/<pid>/smaps_rollup for streaming parse.
	SmapsRollup(pid int) (io.ReadCloser, error)

	// MemInfo returns the raw contents of /proc/meminfo.
	MemInfo() ([]byte, error)

	// SystemStat returns the raw contents of /proc/stat (CPU tick totals).
	SystemStat() ([]byte, error)

	// ZramDevices lists zram device names under /sys/block (e.g. "zram0"),
	// empty slice (no error) when none are present.
	ZramDevices() ([]string, error)

	// ZramAttr reads one attribute file of a zram device
	// (/sys/block/<dev>/<attr>), trimmed of trailing whitespace.
	ZramAttr(dev, attr string) (string, error)
}

// IsNotExist reports whether err represents a vanished-PID race (the
// file or directory no longer exists). It is the procfs analogue of
// os.IsNotExist, kept as its own predicate because fakes don't wrap *os.PathError.
func IsNotExist(err error) bool {
	type notExister interface{ NotExist() bool }
	ne, ok := err.(notExister)
	return ok && ne.NotExist()
}

// IsPermission reports whether err represents a permission-denied race.
func IsPermission(err error) bool {
	type permissionDenier interface{ Permission() bool }
	pe, ok := err.(permissionDenier)
	return ok && pe.Permission()
}
