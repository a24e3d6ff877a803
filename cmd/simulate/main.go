// Command simulate runs the Monte Carlo simulator over a banner defined in a catalog
// directory, without a server or a database.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/xtding233/banner-gacha/internal/catalog"
	"github.com/xtding233/banner-gacha/internal/gacha"
)

func main() {
	var (
		dir      string
		bannerID string
		trials   int
		draws    int
		target   uint
		seed     uint64
		format   string
	)
	flag.StringVar(&dir, "config", "configs", "catalog directory (defaults.yaml + banners/*.yaml)")
	flag.StringVar(&bannerID, "banner", "", "banner id (default: the only banner in the catalog)")
	flag.IntVar(&trials, "trials", 10000, "simulated players")
	flag.IntVar(&draws, "draws", 180, "draws per player")
	flag.UintVar(&target, "target", 5, "tier whose first appearance is measured")
	flag.Uint64Var(&seed, "seed", 1, "PCG seed")
	flag.StringVar(&format, "format", "text", "output format: text, json or yaml")
	flag.Parse()

	if err := run(os.Stdout, dir, bannerID, format, trials, draws, target, seed); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, dir, bannerID, format string, trials, draws int, target uint, seed uint64) error {
	if target > 255 {
		return fmt.Errorf("target tier %d out of range", target)
	}
	cat, err := catalog.NewLoader(dir).Load()
	if err != nil {
		return err
	}
	b, err := pickBanner(cat, bannerID)
	if err != nil {
		return err
	}
	res, err := gacha.Simulate(b, cat.Fallback, gacha.SimParams{
		Trials:        trials,
		DrawsPerTrial: draws,
		TargetTier:    gacha.Tier(target),
		Seed:          seed,
	})
	if err != nil {
		return err
	}

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		return yaml.NewEncoder(out).Encode(res)
	case "text":
		return writeText(out, b, res)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func pickBanner(cat *catalog.Catalog, id string) (*gacha.Banner, error) {
	if id == "" {
		if len(cat.Banners) != 1 {
			return nil, fmt.Errorf("catalog has %d banners; choose one with -banner", len(cat.Banners))
		}
		return cat.Banners[0], nil
	}
	for _, b := range cat.Banners {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, fmt.Errorf("banner %q not found in catalog", id)
}

func writeText(out io.Writer, b *gacha.Banner, res gacha.SimResult) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "banner\t%s (%s)\n", b.ID, b.Name)
	fmt.Fprintf(tw, "draws\t%d\n\n", res.TotalDraws)
	fmt.Fprintln(tw, "tier\tcount\tshare")

	tiers := make([]gacha.Tier, 0, len(res.TierCounts))
	for t := range res.TierCounts {
		tiers = append(tiers, t)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] > tiers[j] })
	for _, t := range tiers {
		fmt.Fprintf(tw, "%d\t%d\t%.4f%%\n", t, res.TierCounts[t], 100*res.TierShare[t])
	}

	s := res.FirstTarget
	fmt.Fprintf(tw, "\nfirst target\tmean %.2f\tp50 %d\tp90 %d\tp99 %d\n", s.Mean, s.P50, s.P90, s.P99)
	fmt.Fprintf(tw, "misses\t%d\n", res.TargetMisses)
	return tw.Flush()
}
