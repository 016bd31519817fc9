//go:build linux

package procfs

import (
	"bytes"
	"io"
	"sort"
)

// Fake is an in-memory FS for tests. Per-PID files are populated directly;
// a VanishAfterRead hook lets tests simulate the race where a PID
// disappears between directory enumeration and file open, or between a
// PID's tier-1 and tier-2 reads (spec §5 "Racy reads").
type Fake struct {
	procs    map[int]*fakeProc
	memInfo  []byte
	sysStat  []byte
	zram     map[string]map[string]string

	// VanishAfterRead, when set for a PID, causes every open for that PID
	// made after the first N opens to fail with a not-exist error. Used to
	// model a PID vanishing mid-tick without needing real timing.
	VanishAfterRead map[int]int
	opens           map[int]int
}

type fakeProc struct {
	cmdline     []byte
	statLine    []byte
	smaps       []byte
	smapsRollup []byte
	missing     map[string]bool // file name -> simulate ENOENT
	denied      map[string]bool // file name -> simulate EACCES
	dead        bool            // Exists() reports false
}

// NewFake returns an empty in-memory FS.
func NewFake() *Fake {
	return &Fake{
		procs:           make(map[int]*fakeProc),
		zram:            make(map[string]map[string]string),
		VanishAfterRead: make(map[int]int),
		opens:           make(map[int]int),
	}
}

func (f *Fake) proc(pid int) *fakeProc {
	p, ok := f.procs[pid]
	if !ok {
		p = &fakeProc{missing: map[string]bool{}, denied: map[string]bool{}}
		f.procs[pid] = p
	}
	return p
}

// AddProcess registers a PID with its cmdline, stat line, smaps and
// smaps_rollup contents.
func (f *Fake) AddProcess(pid int, cmdline, statLine, smaps, smapsRollup string) {
	p := f.proc(pid)
	p.cmdline = []byte(cmdline)
	p.statLine = []byte(statLine)
	p.smaps = []byte(smaps)
	p.smapsRollup = []byte(smapsRollup)
}

// RemoveProcess deletes a PID entirely, simulating it having exited
// before the next tick's enumeration.
func (f *Fake) RemoveProcess(pid int) { delete(f.procs, pid) }

// SetMissing marks a per-PID file as absent (FileMissing race).
func (f *Fake) SetMissing(pid int, file string) { f.proc(pid).missing[file] = true }

// SetDenied marks a per-PID file as permission-denied.
func (f *Fake) SetDenied(pid int, file string) { f.proc(pid).denied[file] = true }

// SetMemInfo sets the contents of /proc/meminfo.
func (f *Fake) SetMemInfo(s string) { f.memInfo = []byte(s) }

// SetSystemStat sets the contents of /proc/stat.
func (f *Fake) SetSystemStat(s string) { f.sysStat = []byte(s) }

// SetZramDevice registers a zram device with the given sysfs attributes.
func (f *Fake) SetZramDevice(name string, attrs map[string]string) { f.zram[name] = attrs }

func (f *Fake) PIDs() ([]int, error) {
	out := make([]int, 0, len(f.procs))
	for pid := range f.procs {
		out = append(out, pid)
	}
	sort.Ints(out)
	return out, nil
}

func (f *Fake) Exists(pid int) bool {
	p, ok := f.procs[pid]
	return ok && !p.dead
}

func notExistErr() error   { return &fsErr{notExist: true, inner: io.ErrUnexpectedEOF} }
func permissionErr() error { return &fsErr{permission: true, inner: io.ErrUnexpectedEOF} }

func (f *Fake) checkRace(pid int, file string) error {
	p, ok := f.procs[pid]
	if !ok {
		return notExistErr()
	}
	if p.missing[file] {
		return notExistErr()
	}
	if p.denied[file] {
		return permissionErr()
	}
	f.opens[pid]++
	if n, ok := f.VanishAfterRead[pid]; ok && f.opens[pid] > n {
		return notExistErr()
	}
	return nil
}

func (f *Fake) Cmdline(pid int) ([]byte, error) {
	if err := f.checkRace(pid, "cmdline"); err != nil {
		return nil, err
	}
	return f.procs[pid].cmdline, nil
}

func (f *Fake) StatLine(pid int) ([]byte, error) {
	if err := f.checkRace(pid, "stat"); err != nil {
		return nil, err
	}
	return f.procs[pid].statLine, nil
}

func (f *Fake) Smaps(pid int) (io.ReadCloser, error) {
	if err := f.checkRace(pid, "smaps"); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(f.procs[pid].smaps)), nil
}

func (f *Fake) SmapsRollup(pid int) (io.ReadCloser, error) {
	if err := f.checkRace(pid, "smaps_rollup"); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(f.procs[pid].smapsRollup)), nil
}

func (f *Fake) MemInfo() ([]byte, error) {
	if f.memInfo == nil {
		return nil, notExistErr()
	}
	return f.memInfo, nil
}

func (f *Fake) SystemStat() ([]byte, error) {
	if f.sysStat == nil {
		return nil, notExistErr()
	}
	return f.sysStat, nil
}

func (f *Fake) ZramDevices() ([]string, error) {
	out := make([]string, 0, len(f.zram))
	for name := range f.zram {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (f *Fake) ZramAttr(dev, attr string) (string, error) {
	attrs, ok := f.zram[dev]
	if !ok {
		return "", notExistErr()
	}
	v, ok := attrs[attr]
	if !ok {
		return "", notExistErr()
	}
	return v, nil
}
