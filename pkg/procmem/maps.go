//go:build linux

package procmem

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ja7ad/procmem/pkg/procmem/procfs"
)

// MapsParser reads a PID's detailed memory-map file into a sequence of
// Chunks, and its summary (rollup) file into a Rollup (spec §4.2).
type MapsParser struct {
	// Logger receives diagnostic ParseError reports for lines that match
	// neither the section nor the item grammar. Defaults to slog.Default().
	Logger *slog.Logger
}

func NewMapsParser() *MapsParser { return &MapsParser{Logger: slog.Default()} }

func (p *MapsParser) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// ParseDetail reads and parses a PID's detailed map file (smaps) into an
// ordered sequence of unclassified Chunks.
func (p *MapsParser) ParseDetail(fs procfs.FS, pid int) ([]Chunk, error) {
	rc, err := fs.Smaps(pid)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rc.Close()
	return p.parseDetailReader(rc, pid)
}

func (p *MapsParser) parseDetailReader(r io.Reader, pid int) ([]Chunk, error) {
	var chunks []Chunk
	var cur *Chunk

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if sec, ok := parseSectionLine(line); ok {
			if cur != nil {
				chunks = append(chunks, *cur)
			}
			cur = &sec
			continue
		}
		if cur == nil {
			p.logger().Warn("procmem: smaps parse error", "pid", pid, "line", line)
			continue
		}
		tag, kb, ok := parseItemLine(line)
		if !ok {
			p.logger().Warn("procmem: smaps parse error", "pid", pid, "line", line)
			continue
		}
		switch tag {
		case "Size":
			cur.Size = kb
		case "Rss":
			cur.RSS = kb
		case "Pss":
			cur.PSS = kb
		case "Shared_Clean", "Shared_Dirty":
			cur.Shared += kb
		case "Private_Clean", "Private_Dirty":
			cur.Private += kb
		case "Swap":
			cur.Swap = kb
		default:
			// unrecognized tag matching "<Name>: <uint> kB" grammar; skipped silently.
		}
	}
	if cur != nil {
		chunks = append(chunks, *cur)
	}
	if err := sc.Err(); err != nil {
		return chunks, fmt.Errorf("procmem: scan smaps: %w", err)
	}
	return chunks, nil
}

// ParseRollup reads and parses a PID's smaps_rollup file.
func (p *MapsParser) ParseRollup(fs procfs.FS, pid int) (Rollup, error) {
	rc, err := fs.SmapsRollup(pid)
	if err != nil {
		return Rollup{}, translateErr(err)
	}
	defer rc.Close()
	return parseRollupReader(rc)
}

func parseRollupReader(r io.Reader) (Rollup, error) {
	var ru Rollup
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		tag, kb, ok := parseItemLine(sc.Text())
		if !ok {
			continue
		}
		switch tag {
		case "Pss_Anon":
			ru.PssAnon = kb
		case "Pss_File":
			ru.PssFile = kb
		case "Pss_Shmem":
			ru.PssShmem = kb
		case "SwapPss":
			ru.SwapPss = kb
		}
	}
	if err := sc.Err(); err != nil {
		return ru, fmt.Errorf("procmem: scan smaps_rollup: %w", err)
	}
	return ru, nil
}

// parseSectionLine parses a detail-file section header line:
//
//	<begin>-<end> <perms> <offset> <dev> <inode> [backing]
func parseSectionLine(line string) (Chunk, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Chunk{}, false
	}
	rng := fields[0]
	dash := strings.IndexByte(rng, '-')
	if dash < 0 {
		return Chunk{}, false
	}
	begin, err := strconv.ParseUint(rng[:dash], 16, 64)
	if err != nil {
		return Chunk{}, false
	}
	end, err := strconv.ParseUint(rng[dash+1:], 16, 64)
	if err != nil {
		return Chunk{}, false
	}
	perms := fields[1]
	if len(perms) != 4 {
		return Chunk{}, false
	}
	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return Chunk{}, false
	}
	var backing string
	if len(fields) > 5 {
		backing = strings.Join(fields[5:], " ")
	}
	return Chunk{Begin: begin, End: end, Perms: perms, Offset: offset, Backing: backing}, true
}

// parseItemLine parses an item line "<Tag>: <uint> kB".
func parseItemLine(line string) (tag string, kb uint64, ok bool) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", 0, false
	}
	tag = line[:i]
	if tag == "" || strings.ContainsAny(tag, " \t") {
		return "", 0, false
	}
	rest := strings.Fields(line[i+1:])
	if len(rest) != 2 || rest[1] != "kB" {
		return "", 0, false
	}
	v, err := strconv.ParseUint(rest[0], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return tag, v, true
}

func translateErr(err error) error {
	switch {
	case procfs.IsNotExist(err):
		return errFileMissing
	case procfs.IsPermission(err):
		return errPermissionDenied
	default:
		return err
	}
}
