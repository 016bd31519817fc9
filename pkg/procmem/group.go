//go:build linux

package procmem

// Group is the per-group-key state the GroupAggregator maintains across
// ticks (spec §3 "Group").
type Group struct {
	Key string

	CurMembers  map[int]struct{}
	PrevMembers map[int]struct{}

	CurRollup  Summary
	PrevRollup Summary

	CurDetail  Summary
	PrevDetail Summary
	HasDetail  bool // CurDetail has been populated by at least one tier-2 run

	IsNew       bool // first tick this group was observed
	IsChanged   bool // membership set differs from the previous tick
	Tier2Fired  bool // tier-2 ran this tick
	DeltaPSS    int64
}

// GroupAggregator owns the set of Groups keyed by the configured
// grouping mode, and decides per group whether a tier-2 detail re-parse
// is warranted (spec §4.5).
type GroupAggregator struct {
	Mode       GroupMode
	MinDeltaKB int

	groups map[string]*Group
}

// NewGroupAggregator constructs an aggregator for the given grouping
// mode and tier-2 delta threshold (spec §6 min_delta_kb).
func NewGroupAggregator(mode GroupMode, minDeltaKB int) *GroupAggregator {
	return &GroupAggregator{
		Mode:       mode,
		MinDeltaKB: minDeltaKB,
		groups:     make(map[string]*Group),
	}
}

// BeginTick rotates current state to previous and clears current
// membership/rollup state for every known group, ready for this tick's
// AddMember calls.
func (a *GroupAggregator) BeginTick() {
	for _, g := range a.groups {
		g.PrevMembers = g.CurMembers
		g.CurMembers = make(map[int]struct{})
		g.PrevRollup = g.CurRollup
		g.CurRollup = Summary{}
		g.IsNew = false
		g.IsChanged = false
		g.Tier2Fired = false
		g.DeltaPSS = 0
	}
}

// group returns the Group for key, creating it (and marking it new) if
// this is its first observation.
func (a *GroupAggregator) group(key string) *Group {
	g, ok := a.groups[key]
	if !ok {
		g = &Group{
			Key:         key,
			CurMembers:  make(map[int]struct{}),
			PrevMembers: make(map[int]struct{}),
			IsNew:       true,
		}
		a.groups[key] = g
	}
	return g
}

// AddMember assigns pid to the group identified by key for this tick,
// and folds rollup into the group's current rollup-based Summary
// (tier-1, spec §4.5). Each PID belongs to exactly one Group per tick.
func (a *GroupAggregator) AddMember(pid int, key string, rollup Rollup) *Group {
	g := a.group(key)
	g.CurMembers[pid] = struct{}{}
	g.CurRollup.AddRollup(rollup)
	return g
}

// NeedsTier2 reports whether g must re-parse detailed maps for its
// members this tick: either it has never had a detail summary, or the
// delta test on its rollup summary triggers (spec §4.5).
func (a *GroupAggregator) NeedsTier2(g *Group) bool {
	if !g.HasDetail {
		return true
	}
	return deltaTestTriggers(g.CurRollup, g.PrevRollup, a.MinDeltaKB)
}

// deltaTestTriggers implements the signed/absolute delta test (spec
// §4.5, Testable Properties §8 boundary behaviors):
//
//	d = (pss_now - pss_prev) + (pswap_now - pswap_prev)
//	threshold <= 0: trigger iff |d| >= -threshold
//	threshold >  0: trigger iff d >= threshold (growth only)
func deltaTestTriggers(cur, prev Summary, threshold int) bool {
	d := (int64(cur.PSS) - int64(prev.PSS)) + (int64(cur.Pswap) - int64(prev.Pswap))
	if threshold <= 0 {
		if d < 0 {
			d = -d
		}
		return d >= int64(-threshold)
	}
	return d >= int64(threshold)
}

// ApplyTier2 records the result of a tier-2 re-parse: the group's
// previous detail summary becomes what CurDetail was, and CurDetail is
// replaced with the freshly computed one.
func (a *GroupAggregator) ApplyTier2(g *Group, detail Summary) {
	g.PrevDetail = g.CurDetail
	g.CurDetail = detail
	g.HasDetail = true
	g.Tier2Fired = true
}

// FinalizeTick computes membership-change flags and the signed
// delta_pss for every known group, and returns the keys of groups whose
// current member set is empty (to be emitted once more with the `x`
// annotation, then removed by the caller via Remove).
func (a *GroupAggregator) FinalizeTick() []string {
	var gone []string
	for key, g := range a.groups {
		g.IsChanged = !sameMemberSet(g.CurMembers, g.PrevMembers)
		g.DeltaPSS = (int64(g.CurRollup.PSS) - int64(g.PrevRollup.PSS)) +
			(int64(g.CurRollup.Pswap) - int64(g.PrevRollup.Pswap))
		if len(g.CurMembers) == 0 {
			gone = append(gone, key)
		}
	}
	return gone
}

// Remove deletes a group (called after its final "gone" emission).
func (a *GroupAggregator) Remove(key string) { delete(a.groups, key) }

// Groups returns every currently tracked group, keyed by group key.
func (a *GroupAggregator) Groups() map[string]*Group { return a.groups }

func sameMemberSet(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for pid := range a {
		if _, ok := b[pid]; !ok {
			return false
		}
	}
	return true
}
