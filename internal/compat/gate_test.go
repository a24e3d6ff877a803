package compat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/banner-gacha/internal/apperr"
)

func TestCheck(t *testing.T) {
	assert.NoError(t, NewGate(2, 2).Check())

	for _, g := range []Gate{NewGate(2, 1), NewGate(2, 3)} {
		err := g.Check()
		assert.True(t, errors.Is(err, ErrVersionMismatch))
		assert.Equal(t, apperr.ClassCompatibility, apperr.ClassOf(err))
	}
}

func TestMigrate(t *testing.T) {
	g, err := NewGate(3, 1).Migrate(3)
	require.NoError(t, err)
	assert.NoError(t, g.Check())

	_, err = NewGate(3, 3).Migrate(3)
	assert.True(t, errors.Is(err, ErrInvalidMigration))

	_, err = NewGate(3, 1).Migrate(2)
	assert.True(t, errors.Is(err, ErrInvalidMigration))

	_, err = NewGate(3, 4).Migrate(3)
	assert.True(t, errors.Is(err, ErrInvalidMigration), "markers never move backwards")
}
