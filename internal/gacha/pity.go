package gacha

import "math"

// PityState maps tier -> consecutive-miss counter for one (player, banner) pair.
// A nil PityState is the implicit all-zero state.
type PityState map[Tier]uint32

// Get returns the counter for t, 0 when never touched.
func (s PityState) Get(t Tier) uint32 {
	return s[t]
}

func (s PityState) Clone() PityState {
	return PityState(cloneTierMap(s))
}

// Apply records one outcome: the selected tier's counter resets to 0 and every other
// tracked tier's counter increases by exactly 1 (saturating). The receiver is not modified.
func (s PityState) Apply(selected Tier, tracked []Tier) PityState {
	next := make(PityState, len(tracked))
	for t, v := range s {
		next[t] = v
	}
	for _, t := range tracked {
		if t == selected {
			next[t] = 0
			continue
		}
		if next[t] < math.MaxUint32 {
			next[t]++
		}
	}
	if _, ok := next[selected]; ok {
		next[selected] = 0
	}
	return next
}

// Player is the PityLedger of one player: banner id -> PityState. Entries are
// materialized lazily on first draw; unreferenced banners read as all-zero.
type Player struct {
	ID   string               `json:"id"`
	Pity map[string]PityState `json:"pity,omitempty"`
}

func NewPlayer(id string) *Player {
	return &Player{ID: id}
}

// PityFor returns the state for bannerID without allocating an entry.
func (p *Player) PityFor(bannerID string) PityState {
	if p == nil {
		return nil
	}
	return p.Pity[bannerID]
}

// Counter returns a single pity counter; reads never fail.
func (p *Player) Counter(bannerID string, t Tier) uint32 {
	return p.PityFor(bannerID).Get(t)
}

// SetPity replaces the state for bannerID, materializing the entry if absent.
func (p *Player) SetPity(bannerID string, s PityState) {
	if p.Pity == nil {
		p.Pity = make(map[string]PityState)
	}
	p.Pity[bannerID] = s
}

func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	out := &Player{ID: p.ID}
	if p.Pity != nil {
		out.Pity = make(map[string]PityState, len(p.Pity))
		for k, v := range p.Pity {
			out.Pity[k] = v.Clone()
		}
	}
	return out
}
