//go:build linux

package procmem

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/ja7ad/procmem/pkg/procmem/procfs"
)

// ZramDevice reports one compressed-swap device's raw and compressed
// footprint, per spec §4.1.
type ZramDevice struct {
	Name        string
	OrigBytes   uint64
	ComprBytes  uint64
	Ratio       float64 // OrigBytes / ComprBytes, 0 if ComprBytes is 0
}

// ZramStats is present only when at least one zram device was detected.
type ZramStats struct {
	Devices []ZramDevice
}

// CPUTotals are the cumulative jiffy counters parsed from the aggregate
// "cpu" line of /proc/stat, used as the wall-clock denominator for
// per-PID CPU percentage (spec §4.4).
type CPUTotals struct {
	Active uint64 // user+nice+system+irq+softirq+steal
	Total  uint64 // Active + idle + iowait
}

// Vitals is the per-tick system-wide snapshot SysFacts produces (spec §4.1).
type Vitals struct {
	MemTotalKB uint64
	MemAvailKB uint64
	ShmemKB    uint64
	DirtyKB    uint64
	Zram       *ZramStats
	CPU        CPUTotals
}

// ReadVitals reads /proc/meminfo, /proc/stat, and (optionally) zram sysfs
// attributes for one tick. A missing required meminfo field is fatal
// (ErrVitalsUnavailable); zram absence is not an error, it simply leaves
// Zram nil.
func ReadVitals(fs procfs.FS) (Vitals, error) {
	mem, err := fs.MemInfo()
	if err != nil {
		return Vitals{}, fmt.Errorf("%w: meminfo: %v", ErrVitalsUnavailable, err)
	}
	fields, err := parseMemInfo(mem)
	if err != nil {
		return Vitals{}, err
	}

	cpu, err := readCPUTotals(fs)
	if err != nil {
		return Vitals{}, fmt.Errorf("%w: %v", ErrVitalsUnavailable, err)
	}

	v := Vitals{
		MemTotalKB: fields["MemTotal"],
		MemAvailKB: fields["MemAvailable"],
		ShmemKB:    fields["Shmem"],
		DirtyKB:    fields["Dirty"],
		CPU:        cpu,
	}

	if zram, err := readZram(fs); err == nil && len(zram.Devices) > 0 {
		v.Zram = zram
	}

	return v, nil
}

var requiredMemInfoFields = []string{"MemTotal", "MemAvailable", "Shmem", "Dirty"}

func parseMemInfo(data []byte) (map[string]uint64, error) {
	out := make(map[string]uint64, len(requiredMemInfoFields))
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		i := strings.IndexByte(line, ':')
		if i < 0 {
			continue
		}
		name := line[:i]
		rest := strings.Fields(line[i+1:])
		if len(rest) == 0 {
			continue
		}
		v, err := strconv.ParseUint(rest[0], 10, 64)
		if err != nil {
			continue
		}
		out[name] = v
	}
	for _, name := range requiredMemInfoFields {
		if _, ok := out[name]; !ok {
			return nil, fmt.Errorf("%w: meminfo missing %s", ErrVitalsUnavailable, name)
		}
	}
	return out, nil
}

func readCPUTotals(fs procfs.FS) (CPUTotals, error) {
	data, err := fs.SystemStat()
	if err != nil {
		return CPUTotals{}, err
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || fields[0] != "cpu" {
			continue
		}
		if len(fields) < 8 {
			return CPUTotals{}, fmt.Errorf("short cpu line: %q", sc.Text())
		}
		vals := make([]uint64, 0, len(fields)-1)
		for _, s := range fields[1:] {
			v, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return CPUTotals{}, fmt.Errorf("parse cpu field %q: %w", s, err)
			}
			vals = append(vals, v)
		}
		active := vals[0] + vals[1] + vals[2] + vals[5] + vals[6] + vals[7]
		total := active + vals[3] + vals[4]
		return CPUTotals{Active: active, Total: total}, nil
	}
	return CPUTotals{}, fmt.Errorf("no aggregate cpu line in /proc/stat")
}

// zram sysfs ABI: mm_stat is one line of whitespace-separated fields,
// orig_data_size and compr_data_size first; kernels without mm_stat
// expose those two as separate attribute files instead.
func readZram(fs procfs.FS) (*ZramStats, error) {
	devs, err := fs.ZramDevices()
	if err != nil {
		return nil, err
	}
	stats := &ZramStats{}
	for _, dev := range devs {
		var orig, compr uint64
		if mm, err := fs.ZramAttr(dev, "mm_stat"); err == nil {
			fields := strings.Fields(mm)
			if len(fields) >= 2 {
				orig, _ = strconv.ParseUint(fields[0], 10, 64)
				compr, _ = strconv.ParseUint(fields[1], 10, 64)
			}
		} else {
			o, errO := fs.ZramAttr(dev, "orig_data_size")
			c, errC := fs.ZramAttr(dev, "compr_data_size")
			if errO != nil || errC != nil {
				continue
			}
			orig, _ = strconv.ParseUint(strings.TrimSpace(o), 10, 64)
			compr, _ = strconv.ParseUint(strings.TrimSpace(c), 10, 64)
		}
		if orig == 0 && compr == 0 {
			continue
		}
		ratio := 0.0
		if compr > 0 {
			ratio = float64(orig) / float64(compr)
		}
		stats.Devices = append(stats.Devices, ZramDevice{
			Name:       dev,
			OrigBytes:  orig,
			ComprBytes: compr,
			Ratio:      ratio,
		})
	}
	return stats, nil
}
