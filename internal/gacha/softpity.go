package gacha

// EffectiveRate computes the probability mass (bps) a tier receives on the next draw:
//   - pity >= hard pity: 10000 (guaranteed)
//   - pity >= soft start: min(10000, base + (pity - start + 1) * increase)
//   - otherwise: base
func EffectiveRate(base, pity uint32, tp TierPity) uint32 {
	if tp.HasHardPity && pity >= tp.HardPity {
		return MaxBps
	}
	if tp.HasSoftStart && pity >= tp.SoftStart {
		// 64-bit math so large counters cannot wrap before the cap
		r := uint64(base) + (uint64(pity-tp.SoftStart)+1)*uint64(tp.SoftIncrease)
		if r > uint64(MaxBps) {
			return MaxBps
		}
		return uint32(r)
	}
	return base
}

// HardPityReached reports whether the counter has met the tier's hard pity.
func HardPityReached(pity uint32, tp TierPity) bool {
	return tp.HasHardPity && pity >= tp.HardPity
}
