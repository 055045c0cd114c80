package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ecosnap/internal/analytics"
	"ecosnap/internal/cache"
	"ecosnap/internal/config"
	"ecosnap/internal/export"
	"ecosnap/internal/pollinate"
	"ecosnap/internal/query"
	"ecosnap/internal/render"
	"ecosnap/internal/snapshot"
	"ecosnap/internal/status"
	"ecosnap/internal/zone"
)

type options struct {
	cfg config.Config

	mode   string
	format render.Format
	group  string
	fields []string
	out    string

	selector  cache.Selector
	base      string
	overwrite bool

	source    string
	target    string
	filter    *pollinate.Filter
	placement pollinate.Placement
}

func main() {
	logger := log.New(os.Stdout, "[ecosnap] ", log.LstdFlags|log.Lmicroseconds)
	if err := run(logger); err != nil {
		logger.Printf("error: %v", err)
		os.Exit(status.ExitCode(err))
	}
}

func run(logger *log.Logger) error {
	var (
		configPath = flag.String("config", "./ecosnap.yaml", "config file path")
		mode       = flag.String("mode", "summary", "summary|spatial|fields|diff|list|export|pollinate")

		latest   = flag.Bool("latest", false, "select the newest autosave")
		name     = flag.String("name", "", "select a save by name pattern")
		savePath = flag.String("save", "", "select a save by explicit path")
		lastN    = flag.Int("last", 0, "select the N newest autosaves")

		fields    = flag.String("fields", "", "comma-separated field paths for -mode fields")
		format    = flag.String("format", "table", "output format: json|table|csv")
		group     = flag.String("group", analytics.GroupByTag, "grouping key: tag|species")
		out       = flag.String("out", "", "output path (export, pollinate)")
		base      = flag.String("base", "", "baseline save (name or path) for -mode diff")
		overwrite = flag.Bool("overwrite", false, "force re-extraction / replace existing output")

		source      = flag.String("source", "", "pollination source save (name or path)")
		target      = flag.String("target", "", "pollination target save (name or path)")
		filterSpec  = flag.String("filter", "", "pollination filter clauses, comma-separated path:op:value")
		topFraction = flag.Float64("top", 0, "pollination: keep the top fraction (0,1] by -top-by")
		topBy       = flag.String("top-by", "identity.generation", "numeric field the -top ranking uses")
		placement   = flag.String("placement", pollinate.PlaceCentral, "pollination placement: central|distributed|at:x,y")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	fmtOut, err := render.ParseFormat(*format)
	if err != nil {
		return err
	}
	opts := options{
		cfg:       cfg,
		mode:      *mode,
		format:    fmtOut,
		group:     *group,
		out:       *out,
		base:      *base,
		overwrite: *overwrite,
		source:    *source,
		target:    *target,
		selector: cache.Selector{
			Latest: *latest,
			LastN:  *lastN,
			Name:   *name,
			Path:   *savePath,
		},
	}
	if *fields != "" {
		for _, f := range strings.Split(*fields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				opts.fields = append(opts.fields, f)
			}
		}
	}
	opts.filter, err = buildFilter(*filterSpec, *topFraction, *topBy)
	if err != nil {
		return err
	}
	opts.placement, err = parsePlacement(*placement)
	if err != nil {
		return err
	}

	store, err := cache.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	switch opts.mode {
	case "list":
		infos, err := store.ListSaves()
		if err != nil {
			return err
		}
		return render.Saves(os.Stdout, infos, opts.format)
	case "summary":
		return runSummary(logger, store, opts)
	case "spatial":
		return runSpatial(logger, store, opts)
	case "fields":
		return runFields(logger, store, opts)
	case "diff":
		return runDiff(logger, store, opts)
	case "export":
		return runExport(logger, store, opts)
	case "pollinate":
		return runPollinate(logger, store, opts)
	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}
}

// loadDir loads one extracted working directory, reporting per-record
// issues without failing the run.
func loadDir(logger *log.Logger, dir string) (*snapshot.Snapshot, error) {
	snap, err := snapshot.Load(dir)
	if err != nil {
		return nil, err
	}
	for _, issue := range snap.Issues {
		logger.Printf("skipping record: %v", issue)
	}
	return snap, nil
}

// loadAll resolves the selector and loads every matched snapshot.
func loadAll(logger *log.Logger, store *cache.Store, opts options) ([]*snapshot.Snapshot, error) {
	dirs, err := store.Resolve(opts.selector, opts.overwrite)
	if err != nil {
		return nil, err
	}
	snaps := make([]*snapshot.Snapshot, 0, len(dirs))
	for _, dir := range dirs {
		snap, err := loadDir(logger, dir)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func label(snap *snapshot.Snapshot) string {
	return filepath.Base(snap.Dir)
}

func runSummary(logger *log.Logger, store *cache.Store, opts options) error {
	snaps, err := loadAll(logger, store, opts)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		if len(snaps) > 1 {
			fmt.Printf("== %s ==\n", label(snap))
		}
		s := analytics.Summarize(snap.Organisms, analytics.SummaryOptions{
			GroupBy:             opts.group,
			Fields:              opts.fields,
			ExtinctionThreshold: opts.cfg.Analytics.ExtinctionThreshold,
		})
		if err := render.Summary(os.Stdout, s, opts.format); err != nil {
			return err
		}
	}
	return nil
}

func runSpatial(logger *log.Logger, store *cache.Store, opts options) error {
	snaps, err := loadAll(logger, store, opts)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		if len(snaps) > 1 {
			fmt.Printf("== %s ==\n", label(snap))
		}
		classifier := zone.NewClassifier(snap.Meta)
		counts := zone.Distribution(classifier, snap.Organisms)
		if err := render.Zones(os.Stdout, counts, opts.format); err != nil {
			return err
		}
	}
	return nil
}

func runFields(logger *log.Logger, store *cache.Store, opts options) error {
	if len(opts.fields) == 0 {
		return fmt.Errorf("-mode fields needs -fields")
	}
	snaps, err := loadAll(logger, store, opts)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		if len(snaps) > 1 {
			fmt.Printf("== %s ==\n", label(snap))
		}
		table := query.Extract(snap.Organisms, opts.fields, opts.cfg.Workers)
		if err := render.QueryTable(os.Stdout, table, opts.format); err != nil {
			return err
		}
		for path, n := range table.Misses() {
			if n > 0 {
				logger.Printf("%s: %d of %d records lack %s", label(snap), n, len(table.Rows), path)
			}
		}
	}
	return nil
}

func runDiff(logger *log.Logger, store *cache.Store, opts options) error {
	var before, after *snapshot.Snapshot
	if opts.base != "" {
		var err error
		if before, err = loadOne(logger, store, opts.base, opts.overwrite); err != nil {
			return err
		}
		dirs, err := store.Resolve(opts.selector, opts.overwrite)
		if err != nil {
			return err
		}
		if after, err = loadDir(logger, dirs[len(dirs)-1]); err != nil {
			return err
		}
	} else {
		if opts.selector.LastN < 2 {
			return fmt.Errorf("-mode diff needs -base or -last N with N >= 2")
		}
		dirs, err := store.Resolve(opts.selector, opts.overwrite)
		if err != nil {
			return err
		}
		if len(dirs) < 2 {
			return status.Ef(status.NotFound, opts.cfg.AutosavesDir(), "need two autosaves to diff, found %d", len(dirs))
		}
		if before, err = loadDir(logger, dirs[0]); err != nil {
			return err
		}
		if after, err = loadDir(logger, dirs[len(dirs)-1]); err != nil {
			return err
		}
	}

	rows := analytics.Diff(before.Organisms, after.Organisms, opts.group, opts.cfg.Analytics.StableTolerance)
	return render.Diff(os.Stdout, rows, opts.format)
}

func runExport(logger *log.Logger, store *cache.Store, opts options) error {
	snaps, err := loadAll(logger, store, opts)
	if err != nil {
		return err
	}
	if len(snaps) != 1 {
		return fmt.Errorf("-mode export needs a selector matching exactly one save")
	}
	out := opts.out
	if out == "" {
		out = label(snaps[0]) + ".jsonl.zst"
	}
	n, err := export.Snapshot(snaps[0], out)
	if err != nil {
		return err
	}
	logger.Printf("exported %d organisms to %s", n, out)
	return nil
}

func runPollinate(logger *log.Logger, store *cache.Store, opts options) error {
	if opts.source == "" || opts.target == "" || opts.out == "" {
		return fmt.Errorf("-mode pollinate needs -source, -target and -out")
	}
	source, err := loadOne(logger, store, opts.source, opts.overwrite)
	if err != nil {
		return err
	}
	target, err := loadOne(logger, store, opts.target, opts.overwrite)
	if err != nil {
		return err
	}

	eng := pollinate.New(opts.cfg, time.Now().UnixNano())
	res, err := eng.Pollinate(source, target, pollinate.Request{
		Filter:     opts.filter,
		Placement:  opts.placement,
		OutputPath: opts.out,
		Overwrite:  opts.overwrite,
	})
	if err != nil {
		return err
	}
	logger.Printf("injected %d organisms into %s", res.Injected, res.OutputPath)
	return nil
}

// loadOne resolves a name-or-path save reference to a loaded snapshot.
func loadOne(logger *log.Logger, store *cache.Store, ref string, overwrite bool) (*snapshot.Snapshot, error) {
	sel := cache.Selector{Name: ref}
	if _, err := os.Stat(ref); err == nil {
		sel = cache.Selector{Path: ref}
	}
	dirs, err := store.Resolve(sel, overwrite)
	if err != nil {
		return nil, err
	}
	return loadDir(logger, dirs[len(dirs)-1])
}

func buildFilter(spec string, topFraction float64, topBy string) (*pollinate.Filter, error) {
	var clauses []*pollinate.Filter
	if spec != "" {
		for _, s := range strings.Split(spec, ",") {
			f, err := pollinate.ParseClause(strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, f)
		}
	}
	if topFraction > 0 {
		clauses = append(clauses, pollinate.TopFraction(topBy, topFraction))
	}
	switch len(clauses) {
	case 0:
		return nil, nil
	case 1:
		return clauses[0], nil
	default:
		return pollinate.And(clauses...), nil
	}
}

func parsePlacement(s string) (pollinate.Placement, error) {
	switch {
	case s == pollinate.PlaceCentral || s == "":
		return pollinate.Placement{Strategy: pollinate.PlaceCentral}, nil
	case s == pollinate.PlaceDistributed:
		return pollinate.Placement{Strategy: pollinate.PlaceDistributed}, nil
	case strings.HasPrefix(s, "at:"):
		coords := strings.Split(strings.TrimPrefix(s, "at:"), ",")
		if len(coords) != 2 {
			return pollinate.Placement{}, fmt.Errorf("placement: want at:x,y, got %q", s)
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
		if errX != nil || errY != nil {
			return pollinate.Placement{}, fmt.Errorf("placement: bad coordinates in %q", s)
		}
		return pollinate.Placement{Strategy: pollinate.PlaceExplicit, X: x, Y: y}, nil
	default:
		return pollinate.Placement{}, fmt.Errorf("placement: unknown strategy %q", s)
	}
}
