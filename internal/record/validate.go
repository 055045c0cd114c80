package record

import (
	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"ecosnap/internal/status"
)

//go:embed organism.schema.json
var organismSchemaJSON string

var organismSchema = jsonschema.MustCompileString("organism.schema.json", organismSchemaJSON)

// Validate checks the organism's structure against the document schema
// and then the cross-field invariants the schema cannot express:
// unique node indices, synapse endpoints referencing existing nodes,
// unique synapse innovation numbers. Violations report as
// SchemaViolation naming the source entry.
func (o *Organism) Validate() error {
	if err := organismSchema.Validate(o.Doc); err != nil {
		return status.E(status.SchemaViolation, o.File, err)
	}
	return o.validateBrain()
}

func (o *Organism) validateBrain() error {
	nodes, _ := Resolve(o.Doc, "brain.nodes").([]any)
	synapses, _ := Resolve(o.Doc, "brain.synapses").([]any)

	nodeIndex := make(map[int64]struct{}, len(nodes))
	for i, n := range nodes {
		idx, ok := Int(Resolve(n, "index"))
		if !ok {
			return status.Ef(status.SchemaViolation, o.File, "brain.nodes.%d: non-integral index", i)
		}
		if _, dup := nodeIndex[idx]; dup {
			return status.Ef(status.SchemaViolation, o.File, "brain.nodes.%d: duplicate node index %d", i, idx)
		}
		nodeIndex[idx] = struct{}{}
	}

	seenInnovation := make(map[int64]struct{}, len(synapses))
	for i, s := range synapses {
		innov, ok := Int(Resolve(s, "innovation"))
		if !ok {
			return status.Ef(status.SchemaViolation, o.File, "brain.synapses.%d: non-integral innovation", i)
		}
		if _, dup := seenInnovation[innov]; dup {
			return status.Ef(status.SchemaViolation, o.File, "brain.synapses.%d: duplicate innovation %d", i, innov)
		}
		seenInnovation[innov] = struct{}{}

		for _, end := range []string{"from", "to"} {
			ref, ok := Int(Resolve(s, end))
			if !ok {
				return status.Ef(status.SchemaViolation, o.File, "brain.synapses.%d: non-integral %s", i, end)
			}
			if _, exists := nodeIndex[ref]; !exists {
				return status.Ef(status.SchemaViolation, o.File, "brain.synapses.%d: %s references missing node %d", i, end, ref)
			}
		}
	}
	return nil
}
