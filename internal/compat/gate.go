// Package compat holds the version marker every operation checks before touching state.
package compat

import (
	"fmt"
	"strconv"

	"github.com/xtding233/banner-gacha/internal/apperr"
)

var (
	ErrVersionMismatch  = apperr.New(apperr.CodeVersionMismatch, "state version does not match this binary")
	ErrInvalidMigration = apperr.New(apperr.CodeInvalidMigration, "invalid migration")
)

// Gate compares the version this binary implements with the marker stored alongside the state.
type Gate struct {
	Binary uint64
	Marker uint64
}

func NewGate(binary, marker uint64) Gate {
	return Gate{Binary: binary, Marker: marker}
}

// Check fails when the stored marker differs from the binary version, in either direction.
func (g Gate) Check() error {
	if g.Marker != g.Binary {
		return fmt.Errorf("%w: binary %d, state %d",
			ErrVersionMismatch.WithMetadata(
				"binary", strconv.FormatUint(g.Binary, 10),
				"marker", strconv.FormatUint(g.Marker, 10)),
			g.Binary, g.Marker)
	}
	return nil
}

// Migrate raises the marker to to. Markers only move forward and only to the binary's version.
func (g Gate) Migrate(to uint64) (Gate, error) {
	if to <= g.Marker {
		return g, fmt.Errorf("%w: marker %d is not above %d", ErrInvalidMigration, to, g.Marker)
	}
	if to != g.Binary {
		return g, fmt.Errorf("%w: binary implements %d, not %d", ErrInvalidMigration, g.Binary, to)
	}
	return Gate{Binary: g.Binary, Marker: to}, nil
}
