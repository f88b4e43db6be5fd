package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/carhunt/go-rank-dealers/config"
	"github.com/carhunt/go-rank-dealers/dataset"
	"github.com/carhunt/go-rank-dealers/dealerinfo"
	"github.com/carhunt/go-rank-dealers/models"
	"github.com/carhunt/go-rank-dealers/rank"
)

func main() {
	_ = godotenv.Load()

	defaultCfg := config.DefaultConfig()
	originDefault := defaultCfg.Origin
	if value, ok := config.EnvString("RANK_ORIGIN"); ok {
		originDefault = value
	}
	cacheDefault := defaultCfg.CacheFile
	if value, ok := config.EnvString("RANK_CACHE"); ok {
		cacheDefault = value
	}
	cutoffDefault := defaultCfg.CutoffMinutes
	if value, ok, err := config.EnvFloat("RANK_CUTOFF_MINUTES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid RANK_CUTOFF_MINUTES: %v\n", err)
		os.Exit(1)
	} else if ok {
		cutoffDefault = value
	}

	origin := flag.String("origin", originDefault, "Origin address for driving-time lookups")
	cacheFile := flag.String("cache", cacheDefault, "Dealer info cache file")
	excludeAddr := flag.String("exclude-address", defaultCfg.ExcludeAddress, "Exclude dealers whose address contains this substring")
	maybeFarAddr := flag.String("maybe-far-address", defaultCfg.MaybeFarAddress, "Log a borderline flag when this address is cut off")
	cutoff := flag.Float64("cutoff", cutoffDefault, "Driving-time cutoff in minutes")
	keepUnknown := flag.Bool("keep-unknown-distance", false, "Keep dealers with unknown driving time at the cutoff")
	offline := flag.Bool("offline", false, "Skip lookups; rank from the cache alone")
	outputFile := flag.String("output", "output/ranked_dealers.csv", "Ranked table output path (empty to skip)")
	topN := flag.Int("top", 5, "Number of top dealers to print")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	wReviews := flag.Float64("w-reviews", defaultCfg.Weights.Reviews, "Reviews weight")
	wFairness := flag.Float64("w-fairness", defaultCfg.Weights.Fairness, "Fairness weight")
	wProximity := flag.Float64("w-proximity", defaultCfg.Weights.Proximity, "Proximity weight")
	wInventory := flag.Float64("w-inventory", defaultCfg.Weights.Inventory, "Inventory weight")

	flag.Parse()

	datasets := flag.Args()
	if len(datasets) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rank [flags] <listings.csv|listings.json> [more ...]")
		os.Exit(2)
	}

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	cfg.Origin = *origin
	cfg.CacheFile = *cacheFile
	cfg.ExcludeAddress = *excludeAddr
	cfg.MaybeFarAddress = *maybeFarAddr
	cfg.CutoffMinutes = *cutoff
	cfg.KeepUnknownDistance = *keepUnknown
	cfg.Weights = rank.Weights{
		Reviews:   *wReviews,
		Fairness:  *wFairness,
		Proximity: *wProximity,
		Inventory: *wInventory,
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var listings []rank.Listing
	for _, path := range datasets {
		rows, sum, err := dataset.LoadListings(path)
		if err != nil {
			slog.Error("loading dataset", slog.String("file", path), slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("loaded dataset",
			slog.String("file", path),
			slog.Int("rows", sum.Rows),
			slog.Int("loaded", sum.Loaded),
			slog.Int("missing_required", sum.MissingRequired),
			slog.Int("bad_price", sum.BadPrice),
		)
		listings = append(listings, rows...)
	}
	if len(listings) == 0 {
		slog.Error("no usable listings in the input datasets")
		os.Exit(1)
	}

	stats := rank.ComputeFairness(listings)
	slog.Info("computed fairness", slog.Int("dealers", len(stats)))

	cache := dealerinfo.Open(cfg.CacheFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*offline {
		enricher := &dealerinfo.Enricher{
			Cache:           cache,
			Client:          dealerinfo.NewClient(cfg.Origin),
			ExcludeAddress:  cfg.ExcludeAddress,
			MaybeFarAddress: cfg.MaybeFarAddress,
			CutoffMinutes:   cfg.CutoffMinutes,
		}
		names := make([]string, 0, len(stats))
		for _, s := range stats {
			names = append(names, s.DealerName)
		}
		sum := enricher.Enrich(ctx, names)
		slog.Info("enrichment complete",
			slog.Int("cached", sum.Cached),
			slog.Int("fetched", sum.Fetched),
			slog.Int("excluded", sum.Excluded),
			slog.Int("failed", sum.Failed),
		)
	}

	stats, cacheExcluded := dealerinfo.Merge(stats, cache)

	res := rank.Rank(stats, rank.Options{
		Weights:             cfg.Weights,
		ExcludeAddress:      cfg.ExcludeAddress,
		CutoffMinutes:       cfg.CutoffMinutes,
		KeepUnknownDistance: cfg.KeepUnknownDistance,
	})
	slog.Info("ranking complete",
		slog.Int("ranked", len(res.Dealers)),
		slog.Int("excluded_cached", cacheExcluded),
		slog.Int("excluded_by_address", res.ExcludedByAddr),
		slog.Int("excluded_by_cutoff", res.ExcludedByCutoff),
	)

	if *outputFile != "" {
		if err := dataset.WriteRankedCSV(*outputFile, res.Dealers); err != nil {
			slog.Error("writing ranked table", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("ranked table written", slog.String("file", *outputFile))
	}

	printTop(res.Dealers, *topN)
}

// printTop renders the leading dealers as a terminal table.
func printTop(dealers []*models.DealerStat, n int) {
	if n <= 0 || len(dealers) == 0 {
		return
	}
	if n > len(dealers) {
		n = len(dealers)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		"#", "Dealer", "Composite", "Reviews", "Fairness", "Proximity",
		"Inventory", "Listings", "Median %", "Minutes",
	})
	for _, d := range dealers[:n] {
		t.AppendRow(table.Row{
			d.Rank,
			d.DealerName,
			fmt.Sprintf("%.1f", d.CompositeScore),
			fmt.Sprintf("%.1f", d.ReviewsScore),
			fmt.Sprintf("%.1f", d.FairnessScore),
			fmt.Sprintf("%.1f", d.ProximityScore),
			fmt.Sprintf("%.1f", d.InventoryScore),
			d.Listings,
			fmt.Sprintf("%+.2f", d.MedianRelPct*100),
			formatMinutes(d.DrivingTimeMinutes),
		})
	}
	t.Render()
}

func formatMinutes(v *float64) string {
	if v == nil {
		return "?"
	}
	return fmt.Sprintf("%.0f", *v)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
