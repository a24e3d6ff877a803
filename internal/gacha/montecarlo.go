package gacha

import (
	"fmt"
	"math"
)

// Simulation bounds keep a single request from monopolizing a worker.
const (
	MaxSimTrials        = 20000
	MaxSimDrawsPerTrial = 1000
)

// SimParams describes one Monte Carlo run over a banner configuration.
type SimParams struct {
	Trials        int    // independent players
	DrawsPerTrial int    // draws each player makes
	TargetTier    Tier   // tier whose first appearance is measured
	Seed          uint64 // PCG seed; equal seeds give equal results
	// Cushion is the pity each simulated player starts with (carry-over from earlier pulls).
	Cushion PityState
}

// Stats describes how many draws trials needed to first see the target tier.
// Percentiles are draw counts.
type Stats struct {
	Mean   float64 `json:"mean"`
	Var    float64 `json:"var"`
	StdDev float64 `json:"stddev"`
	P50    int     `json:"p50"`
	P90    int     `json:"p90"`
	P99    int     `json:"p99"`
}

// SimResult reports the observed tier distribution and draws-to-first-target statistics.
type SimResult struct {
	TotalDraws  int              `json:"total_draws"`
	TierCounts  map[Tier]int     `json:"tier_counts"`
	TierShare   map[Tier]float64 `json:"tier_share"`
	FirstTarget Stats            `json:"first_target"`
	// TargetMisses counts trials that never produced the target tier.
	TargetMisses int `json:"target_misses"`
}

// summarize reduces a histogram where hist[d] counts trials first hitting the target on
// draw d. Percentiles use nearest rank, so each is a draw count some trial needed.
func summarize(hist []int) Stats {
	var n, sum int
	for d, c := range hist {
		n += c
		sum += d * c
	}
	if n == 0 {
		return Stats{}
	}
	mean := float64(sum) / float64(n)
	var sq float64
	for d, c := range hist {
		dev := float64(d) - mean
		sq += dev * dev * float64(c)
	}
	variance := sq / float64(n)
	st := Stats{Mean: mean, Var: variance, StdDev: math.Sqrt(variance)}

	ranks := []struct {
		pct int
		out *int
	}{{50, &st.P50}, {90, &st.P90}, {99, &st.P99}}
	seen, next := 0, 0
	for d, c := range hist {
		seen += c
		for next < len(ranks) && seen*100 >= ranks[next].pct*n {
			*ranks[next].out = d
			next++
		}
	}
	return st
}

// Simulate replays many players against the banner with seeded entropy. The banner's
// activity window is ignored so upcoming banners can be tuned before they open.
func Simulate(b *Banner, reg RarityRateRegistry, p SimParams) (SimResult, error) {
	if p.Trials < 1 || p.Trials > MaxSimTrials {
		return SimResult{}, fmt.Errorf("%w: trials must be in [1, %d]", ErrInvalidInput, MaxSimTrials)
	}
	if p.DrawsPerTrial < 1 || p.DrawsPerTrial > MaxSimDrawsPerTrial {
		return SimResult{}, fmt.Errorf("%w: draws must be in [1, %d]", ErrInvalidInput, MaxSimDrawsPerTrial)
	}

	eng := NewEngine(NewSeededEntropy(p.Seed))
	res := SimResult{TierCounts: make(map[Tier]int)}
	firstHits := make([]int, p.DrawsPerTrial+1)

	for trial := 0; trial < p.Trials; trial++ {
		state := p.Cushion.Clone()
		first := 0
		for d := 1; d <= p.DrawsPerTrial; d++ {
			out, err := eng.draw(b, reg, state)
			if err != nil {
				return SimResult{}, err
			}
			res.TierCounts[out.Tier]++
			res.TotalDraws++
			if first == 0 && out.Tier >= p.TargetTier {
				first = d
			}
			state = out.PityAfter
		}
		if first == 0 {
			res.TargetMisses++
			continue
		}
		firstHits[first]++
	}

	res.TierShare = make(map[Tier]float64, len(res.TierCounts))
	for t, c := range res.TierCounts {
		res.TierShare[t] = float64(c) / float64(res.TotalDraws)
	}
	res.FirstTarget = summarize(firstHits)
	return res, nil
}
