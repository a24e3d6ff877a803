package gacha

import (
	"fmt"

	"github.com/xtding233/banner-gacha/internal/apperr"
)

// MaxBps is 100% expressed in basis points.
const MaxBps uint32 = 10000

// DefaultBoost is the intra-tier weight of an item with no featured boost (1x).
const DefaultBoost uint32 = 10000

var (
	ErrRateOutOfRange   = apperr.New(apperr.CodeRateOutOfRange, "rate must be within 0..10000 bps")
	ErrInvalidTimeRange = apperr.New(apperr.CodeInvalidTimeRange, "invalid time range")
	ErrInvalidInput     = apperr.New(apperr.CodeInvalidInput, "invalid input")
)

func validateBps(bps uint32) error {
	if bps > MaxBps {
		return fmt.Errorf("%w: got %d", ErrRateOutOfRange, bps)
	}
	return nil
}

// validateWindow rejects windows whose bounded end is not after start. end == 0 is unbounded.
func validateWindow(start, end int64) error {
	if start < 0 || end < 0 {
		return fmt.Errorf("%w: negative timestamp", ErrInvalidTimeRange)
	}
	if end != 0 && end <= start {
		return fmt.Errorf("%w: end %d <= start %d", ErrInvalidTimeRange, end, start)
	}
	return nil
}
