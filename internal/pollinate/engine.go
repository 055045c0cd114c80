package pollinate

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"ecosnap/internal/archive"
	"ecosnap/internal/config"
	"ecosnap/internal/record"
	"ecosnap/internal/snapshot"
	"ecosnap/internal/status"
	"ecosnap/internal/zone"
)

// maxSafeID is the largest organism id representable exactly as a JSON
// number (a float64 integer).
const maxSafeID = int64(1)<<53 - 1

const (
	PlaceCentral     = "central"
	PlaceDistributed = "distributed"
	PlaceExplicit    = "explicit"
)

// Placement chooses where injected organisms land in the target world.
// Central clusters them around the busiest zone's center, distributed
// spreads them near existing target organisms, explicit uses X,Y.
type Placement struct {
	Strategy string
	X, Y     float64
}

type Request struct {
	Filter    *Filter
	Placement Placement
	// OutputPath is the archive to write the merged snapshot to.
	OutputPath string
	Overwrite  bool
}

// Result reports what was injected. IDMap maps each source organism id
// to the id it carries in the output.
type Result struct {
	Injected   int
	OutputPath string
	IDMap      map[int64]int64
}

type Engine struct {
	cfg config.Config
	rng *rand.Rand
}

// New builds an engine. The seed fixes placement randomness; callers
// outside tests pass something like time.Now().UnixNano().
func New(cfg config.Config, seed int64) *Engine {
	return &Engine{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// Pollinate selects organisms from source, remaps their ids above the
// target's id space, places them in the target world and writes the
// merged population as a new archive. Neither input snapshot is
// modified.
func (e *Engine) Pollinate(source, target *snapshot.Snapshot, req Request) (*Result, error) {
	if req.OutputPath == "" {
		return nil, status.Ef(status.StorageError, "pollinate", "no output path")
	}
	if !req.Overwrite {
		if _, err := os.Stat(req.OutputPath); err == nil {
			return nil, status.Ef(status.StorageError, req.OutputPath, "output exists; pass overwrite to replace")
		}
	}

	selected, err := req.Filter.Select(source.Organisms)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, status.Ef(status.EmptySelection, "pollinate", "filter matched no organisms")
	}

	clones, idMap, err := e.remap(selected, target)
	if err != nil {
		return nil, err
	}
	if err := e.place(clones, target, req.Placement); err != nil {
		return nil, err
	}
	if e.cfg.Pollinate.AdoptTargetVitals && target.Meta.Vitals != nil {
		for _, c := range clones {
			c.SetVitals(target.Meta.Vitals.Energy, target.Meta.Vitals.Health)
		}
	}

	workDir, err := os.MkdirTemp(filepath.Dir(req.OutputPath), ".pollinate-*")
	if err != nil {
		return nil, status.E(status.StorageError, req.OutputPath, err)
	}
	defer os.RemoveAll(workDir)

	if err := e.merge(workDir, target, clones); err != nil {
		return nil, err
	}
	if err := archive.Write(workDir, req.OutputPath); err != nil {
		return nil, err
	}

	return &Result{Injected: len(clones), OutputPath: req.OutputPath, IDMap: idMap}, nil
}

// remap clones the selection and assigns ids sequentially above the
// target's highest id, keeping the two id spaces disjoint.
func (e *Engine) remap(selected []*record.Organism, target *snapshot.Snapshot) ([]*record.Organism, map[int64]int64, error) {
	next := target.MaxID() + 1
	taken := target.IDs()

	clones := make([]*record.Organism, 0, len(selected))
	idMap := make(map[int64]int64, len(selected))
	for _, o := range selected {
		if next > maxSafeID {
			return nil, nil, status.Ef(status.IdSpaceExhausted, o.File,
				"no ids left below %d", maxSafeID)
		}
		if _, clash := taken[next]; clash {
			return nil, nil, status.Ef(status.IdSpaceExhausted, o.File,
				"id %d already present in target", next)
		}
		c, err := o.Clone()
		if err != nil {
			return nil, nil, status.E(status.StorageError, o.File, err)
		}
		if old, ok := o.ID(); ok {
			idMap[old] = next
		}
		c.SetID(next)
		taken[next] = struct{}{}
		next++
		clones = append(clones, c)
	}
	return clones, idMap, nil
}

type point struct{ x, y float64 }

func (e *Engine) place(clones []*record.Organism, target *snapshot.Snapshot, p Placement) error {
	classifier := zone.NewClassifier(target.Meta)
	world := target.Meta.WorldRadius
	minSep := e.cfg.Pollinate.MinSeparation
	retries := e.cfg.Pollinate.PlacementRetries

	occupied := make([]point, 0, len(target.Organisms)+len(clones))
	for _, o := range target.Organisms {
		if x, y, ok := o.Position(); ok {
			occupied = append(occupied, point{x, y})
		}
	}

	cx, cy := e.anchor(classifier, target, p)
	for i, c := range clones {
		placed := false
		for attempt := 0; attempt < retries; attempt++ {
			cand := e.candidate(target, p, cx, cy, world, minSep, attempt)
			if math.Hypot(cand.x, cand.y) > world {
				continue
			}
			if clear(cand, occupied, minSep) {
				c.SetPosition(cand.x, cand.y)
				occupied = append(occupied, cand)
				placed = true
				break
			}
		}
		if !placed {
			return status.Ef(status.PlacementFailed, c.File,
				"organism %d of %d: no clear position after %d attempts", i+1, len(clones), retries)
		}
	}
	return nil
}

// anchor picks the cluster center for the central strategy: the center
// of the zone holding the most target organisms, falling back to the
// world origin.
func (e *Engine) anchor(classifier *zone.Classifier, target *snapshot.Snapshot, p Placement) (float64, float64) {
	if p.Strategy != PlaceCentral {
		return 0, 0
	}
	counts := map[string]int{}
	for _, o := range target.Organisms {
		if x, y, ok := o.Position(); ok {
			counts[classifier.Classify(x, y)]++
		}
	}
	best, bestN := "", 0
	for _, label := range classifier.Labels() {
		if label == zone.Unclassified {
			continue
		}
		if counts[label] > bestN {
			best, bestN = label, counts[label]
		}
	}
	if best != "" {
		if x, y, ok := classifier.Center(best); ok {
			return x, y
		}
	}
	return 0, 0
}

func (e *Engine) candidate(target *snapshot.Snapshot, p Placement, cx, cy, world, minSep float64, attempt int) point {
	switch p.Strategy {
	case PlaceExplicit:
		if attempt == 0 {
			return point{p.X, p.Y}
		}
		// Later attempts spiral outward from the requested spot.
		r := minSep * float64(attempt) * (0.5 + e.rng.Float64())
		theta := 2 * math.Pi * e.rng.Float64()
		return point{p.X + r*math.Cos(theta), p.Y + r*math.Sin(theta)}

	case PlaceDistributed:
		// Seed from an existing organism's position so injected density
		// follows target density.
		if len(target.Organisms) > 0 {
			o := target.Organisms[e.rng.Intn(len(target.Organisms))]
			if x, y, ok := o.Position(); ok {
				r := world * 0.05 * math.Sqrt(e.rng.Float64())
				theta := 2 * math.Pi * e.rng.Float64()
				return point{x + r*math.Cos(theta), y + r*math.Sin(theta)}
			}
		}
		return e.uniform(world)

	default: // PlaceCentral
		r := world * 0.1 * math.Sqrt(e.rng.Float64())
		theta := 2 * math.Pi * e.rng.Float64()
		return point{cx + r*math.Cos(theta), cy + r*math.Sin(theta)}
	}
}

func (e *Engine) uniform(world float64) point {
	r := world * math.Sqrt(e.rng.Float64())
	theta := 2 * math.Pi * e.rng.Float64()
	return point{r * math.Cos(theta), r * math.Sin(theta)}
}

func clear(cand point, occupied []point, minSep float64) bool {
	for _, o := range occupied {
		if math.Hypot(cand.x-o.x, cand.y-o.y) < minSep {
			return false
		}
	}
	return true
}

// merge lays out the combined population as a working directory in the
// archive's on-disk shape: target organisms first, injected clones
// after, entry numbers reassigned contiguously. Eggs, images and
// metadata come from the target unchanged.
func (e *Engine) merge(workDir string, target *snapshot.Snapshot, clones []*record.Organism) error {
	metaRaw, err := target.Meta.Encode()
	if err != nil {
		return status.E(status.StorageError, workDir, err)
	}
	if err := os.WriteFile(filepath.Join(workDir, archive.MetadataName), metaRaw, 0o644); err != nil {
		return status.E(status.StorageError, workDir, err)
	}

	organismDir := filepath.Join(workDir, archive.OrganismDir)
	if err := os.MkdirAll(organismDir, 0o755); err != nil {
		return status.E(status.StorageError, workDir, err)
	}
	n := 0
	writeOrganism := func(o *record.Organism) error {
		n++
		raw, err := o.Encode()
		if err != nil {
			return status.E(status.StorageError, o.File, err)
		}
		name := fmt.Sprintf("organism_%d.json", n)
		return os.WriteFile(filepath.Join(organismDir, name), raw, 0o644)
	}
	for _, o := range target.Organisms {
		if err := writeOrganism(o); err != nil {
			return err
		}
	}
	for _, c := range clones {
		if err := writeOrganism(c); err != nil {
			return err
		}
	}

	if err := copyAll(target.EggFiles, filepath.Join(workDir, archive.EggDir)); err != nil {
		return err
	}
	return copyAll(target.ImageFiles, filepath.Join(workDir, archive.ImageDir))
}

func copyAll(paths []string, destDir string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return status.E(status.StorageError, destDir, err)
	}
	for _, p := range paths {
		if err := copyFile(p, filepath.Join(destDir, filepath.Base(p))); err != nil {
			return status.E(status.StorageError, p, err)
		}
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
