// Package catalog loads seed banners from YAML and watches them for changes.
//
// Layout under the base directory:
//
//	defaults.yaml        rarity bounds, fallback rates, banner defaults
//	banners/<name>.yaml  one banner per file, merged over the defaults
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xtding233/banner-gacha/internal/gacha"
)

// Paths helper for the defaults and banner files.
type Paths struct {
	BaseDir string
}

func (p Paths) DefaultsPath() string {
	return filepath.Join(p.BaseDir, "defaults.yaml")
}

func (p Paths) BannerDir() string {
	return filepath.Join(p.BaseDir, "banners")
}

// BannerFiles lists banner files in name order.
func (p Paths) BannerFiles() ([]string, error) {
	entries, err := os.ReadDir(p.BannerDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			out = append(out, filepath.Join(p.BannerDir(), e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Loader reads YAML files and merges defaults → banner.
type Loader struct {
	paths Paths
}

// NewLoader creates a loader with the given base directory.
func NewLoader(baseDir string) *Loader {
	return &Loader{paths: Paths{BaseDir: baseDir}}
}

func (l *Loader) Paths() Paths { return l.paths }

// Load reads, merges and validates every file. Any invalid file fails the whole load so
// a half-edited directory never reaches the store.
func (l *Loader) Load() (*Catalog, error) {
	var defs RawDefaults
	if err := readYAML(l.paths.DefaultsPath(), &defs); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}
	files, err := l.paths.BannerFiles()
	if err != nil {
		return nil, fmt.Errorf("list banners: %w", err)
	}

	raws := make([]RawBanner, 0, len(files))
	for _, f := range files {
		var rb RawBanner
		if err := readYAML(f, &rb); err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(f), err)
		}
		if rb.ID == "" {
			rb.ID = strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		}
		raws = append(raws, mergeBanner(defs.Banner, rb))
	}

	if err := ValidateRaw(defs, raws); err != nil {
		return nil, err
	}
	return build(defs, raws)
}

// readYAML loads a YAML file into out. Missing files leave out untouched.
func readYAML(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(b, out)
}

// mergeBanner overlays b on the defaults a: scalars in b win when set, maps merge per key
// with b winning, items come from b only.
func mergeBanner(a, b RawBanner) RawBanner {
	out := b
	if out.Start == nil {
		out.Start = a.Start
	}
	if out.End == nil {
		out.End = a.End
	}
	if out.Active == nil {
		out.Active = a.Active
	}
	if out.DefaultTier == nil {
		out.DefaultTier = a.DefaultTier
	}
	if out.Description == "" {
		out.Description = a.Description
	}

	out.Rates = mergeRates(a.Rates, b.Rates)
	out.Pity = mergePity(a.Pity, b.Pity)
	return out
}

func mergeRates(a, b map[gacha.Tier]uint32) map[gacha.Tier]uint32 {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[gacha.Tier]uint32, len(a)+len(b))
	for t, v := range a {
		out[t] = v
	}
	for t, v := range b {
		out[t] = v
	}
	return out
}

// mergePity merges per tier, then per field, so a banner can override only hard pity.
func mergePity(a, b map[gacha.Tier]RawPity) map[gacha.Tier]RawPity {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[gacha.Tier]RawPity, len(a)+len(b))
	for t, p := range a {
		out[t] = p
	}
	for t, p := range b {
		cur := out[t]
		if p.Hard != nil {
			cur.Hard = p.Hard
		}
		if p.SoftStart != nil {
			cur.SoftStart = p.SoftStart
		}
		if p.SoftIncrease != nil {
			cur.SoftIncrease = p.SoftIncrease
		}
		out[t] = cur
	}
	return out
}
