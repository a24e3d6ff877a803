package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/banner-gacha/internal/gacha"
)

const sampleConfigs = "../../configs"

func TestRunText(t *testing.T) {
	var out bytes.Buffer
	err := run(&out, sampleConfigs, "standard", "text", 500, 100, 6, 3)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Wanderlust Invocation")
	assert.Contains(t, out.String(), "first target")
}

func TestRunJSONHonorsHardPity(t *testing.T) {
	var out bytes.Buffer
	err := run(&out, sampleConfigs, "crimson-moon", "json", 2000, 120, 6, 9)
	require.NoError(t, err)

	var res gacha.SimResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, 240000, res.TotalDraws)
	assert.Zero(t, res.TargetMisses)
	assert.LessOrEqual(t, res.FirstTarget.P99, 81)
}

func TestRunRequiresBannerWhenAmbiguous(t *testing.T) {
	err := run(&bytes.Buffer{}, sampleConfigs, "", "text", 10, 10, 6, 1)
	assert.ErrorContains(t, err, "choose one with -banner")

	err = run(&bytes.Buffer{}, sampleConfigs, "missing", "text", 10, 10, 6, 1)
	assert.ErrorContains(t, err, "not found")

	err = run(&bytes.Buffer{}, sampleConfigs, "standard", "xml", 10, 10, 6, 1)
	assert.ErrorContains(t, err, "unknown format")
}
