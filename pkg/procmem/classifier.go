//go:build linux

package procmem

import "strings"

// pseudoStackMinKB and pseudoStackMaxKB bound the pseudo-stack guard's
// real-stack-segment size test. The band is empirical (see spec.md
// Design Notes §9: "appears empirical... preserve verbatim"). Do not
// adjust without re-validating against real thread-stack layouts.
const (
	pseudoStackMinKB = 10000
	pseudoStackMaxKB = 20000
)

// Classifier assigns a Category and effective size to each Chunk using
// the fixed, ordered decision procedure in spec §4.3. It is a pure
// function of a Chunk's own fields plus, for the pseudo-stack guard,
// its immediate successor. The type carries no state; the per-chunk
// rules live in the free function classifyOne so they can be
// property-tested directly per Design Notes §9.
type Classifier struct{}

// ClassifyAll classifies every chunk in place, applying the pseudo-stack
// guard across adjacent pairs before falling back to the single-chunk
// rules. Classification is deterministic and idempotent: re-running it
// on an already-classified slice (ignoring the Category/ESize fields it
// previously wrote) yields identical results.
func (Classifier) ClassifyAll(chunks []Chunk) {
	for i := 0; i < len(chunks); i++ {
		if i+1 < len(chunks) && isPseudoStackGuard(chunks[i], chunks[i+1]) {
			chunks[i].Category = CategoryData
			chunks[i].ESize = 0
			chunks[i+1].Category = CategoryStack
			chunks[i+1].ESize = chunks[i+1].Private + chunks[i+1].Swap
			i++ // the successor is consumed by the guard, skip its own classification
			continue
		}
		classifyOne(&chunks[i])
	}
}

// isPseudoStackGuard reports whether cur/next together form the
// thread-stack guard-page layout: a bogus one-page, no-access,
// unbacked section immediately followed by the real anonymous,
// writable stack region (spec §4.3 rule 3).
func isPseudoStackGuard(cur, next Chunk) bool {
	if cur.Size != 4 || cur.Perms != "---p" || cur.Backing != "" || cur.Offset != cur.Begin {
		return false
	}
	if next.Begin != cur.End {
		return false
	}
	if len(next.Perms) != 4 || next.Perms[1] != 'w' || next.Backing != "" || next.Offset != next.Begin {
		return false
	}
	return next.Size >= pseudoStackMinKB && next.Size <= pseudoStackMaxKB
}

func classifyOne(c *Chunk) {
	switch {
	case c.isShared():
		if strings.Contains(c.Backing, "SYSV") {
			c.Category = CategoryShSYSV
		} else {
			c.Category = CategoryShOth
		}
		c.ESize = c.PSS
	case c.Backing == "[stack]":
		c.Category = CategoryStack
		c.ESize = c.Private
	case len(c.Perms) == 4 && c.Perms[:3] == "---":
		c.Category = CategoryData
		c.ESize = 0
	case len(c.Perms) == 4 && c.Perms[1] == 'w':
		c.Category = CategoryData
		c.ESize = c.RSS + c.Swap
	default:
		c.Category = CategoryText
		c.ESize = c.PSS + c.Swap
	}
}
