// Package pollinate selects organisms from a source snapshot and
// injects them into a target snapshot, producing a new archive. The
// source and target snapshots are never mutated.
package pollinate

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"ecosnap/internal/record"
)

type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpLt       Op = "lt"
	OpLe       Op = "le"
	OpGt       Op = "gt"
	OpGe       Op = "ge"
	OpContains Op = "contains"
)

// Filter is a tagged variant: exactly one of Field, All, Any or Top is
// set. All/Any compose sub-filters; Top is rank-based and therefore
// evaluated against the whole candidate set, not per record.
type Filter struct {
	Field *FieldClause
	All   []*Filter
	Any   []*Filter
	Top   *TopClause
}

// FieldClause compares one resolved field against a literal. A record
// whose path does not resolve never matches, whatever the comparator.
type FieldClause struct {
	Path  string
	Op    Op
	Value any
}

// TopClause keeps the records ranking in the top Fraction by a numeric
// field, highest first. Records lacking the field are excluded from
// the ranking.
type TopClause struct {
	Path     string
	Fraction float64
}

func ByField(path string, op Op, value any) *Filter {
	return &Filter{Field: &FieldClause{Path: path, Op: op, Value: value}}
}

func TopFraction(path string, fraction float64) *Filter {
	return &Filter{Top: &TopClause{Path: path, Fraction: fraction}}
}

func And(filters ...*Filter) *Filter { return &Filter{All: filters} }
func Or(filters ...*Filter) *Filter  { return &Filter{Any: filters} }

// Select applies the filter to a candidate set. A nil filter selects
// everything.
func (f *Filter) Select(organisms []*record.Organism) ([]*record.Organism, error) {
	if f == nil {
		return append([]*record.Organism(nil), organisms...), nil
	}
	switch {
	case f.Field != nil:
		var out []*record.Organism
		for _, o := range organisms {
			ok, err := f.Field.matches(o)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, o)
			}
		}
		return out, nil

	case f.All != nil:
		out := organisms
		for _, sub := range f.All {
			var err error
			out, err = sub.Select(out)
			if err != nil {
				return nil, err
			}
		}
		return append([]*record.Organism(nil), out...), nil

	case f.Any != nil:
		seen := map[*record.Organism]struct{}{}
		var out []*record.Organism
		for _, sub := range f.Any {
			matched, err := sub.Select(organisms)
			if err != nil {
				return nil, err
			}
			for _, o := range matched {
				if _, dup := seen[o]; !dup {
					seen[o] = struct{}{}
					out = append(out, o)
				}
			}
		}
		// Keep candidate order, not sub-filter order.
		index := map[*record.Organism]int{}
		for i, o := range organisms {
			index[o] = i
		}
		sort.Slice(out, func(i, j int) bool { return index[out[i]] < index[out[j]] })
		return out, nil

	case f.Top != nil:
		return f.Top.take(organisms)

	default:
		return nil, fmt.Errorf("filter: empty variant")
	}
}

func (c *FieldClause) matches(o *record.Organism) (bool, error) {
	v := record.Resolve(o.Doc, c.Path)
	if record.IsAbsent(v) {
		return false, nil
	}

	if want, ok := record.Number(c.Value); ok {
		got, ok := record.Number(v)
		if !ok {
			return false, nil
		}
		switch c.Op {
		case OpEq:
			return got == want, nil
		case OpNe:
			return got != want, nil
		case OpLt:
			return got < want, nil
		case OpLe:
			return got <= want, nil
		case OpGt:
			return got > want, nil
		case OpGe:
			return got >= want, nil
		default:
			return false, fmt.Errorf("filter: comparator %q not valid for numbers", c.Op)
		}
	}

	if want, ok := c.Value.(string); ok {
		got, ok := record.String(v)
		if !ok {
			return false, nil
		}
		switch c.Op {
		case OpEq:
			return got == want, nil
		case OpNe:
			return got != want, nil
		case OpContains:
			return strings.Contains(got, want), nil
		default:
			return false, fmt.Errorf("filter: comparator %q not valid for strings", c.Op)
		}
	}

	if want, ok := c.Value.(bool); ok {
		got, ok := v.(bool)
		if !ok {
			return false, nil
		}
		switch c.Op {
		case OpEq:
			return got == want, nil
		case OpNe:
			return got != want, nil
		default:
			return false, fmt.Errorf("filter: comparator %q not valid for booleans", c.Op)
		}
	}

	return false, fmt.Errorf("filter: unsupported literal type %T", c.Value)
}

func (c *TopClause) take(organisms []*record.Organism) ([]*record.Organism, error) {
	if c.Fraction <= 0 || c.Fraction > 1 {
		return nil, fmt.Errorf("filter: top fraction must be in (0,1], got %v", c.Fraction)
	}
	type ranked struct {
		o *record.Organism
		v float64
	}
	var pool []ranked
	for _, o := range organisms {
		if v, ok := record.Number(record.Resolve(o.Doc, c.Path)); ok {
			pool = append(pool, ranked{o, v})
		}
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].v > pool[j].v })

	n := int(math.Ceil(c.Fraction * float64(len(pool))))
	out := make([]*record.Organism, 0, n)
	for i := 0; i < n && i < len(pool); i++ {
		out = append(out, pool[i].o)
	}
	return out, nil
}

// ParseClause parses the CLI form "path:op:value". The value literal
// is tried as a number, then a boolean, then taken as a string.
func ParseClause(s string) (*Filter, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return nil, fmt.Errorf("filter: want path:op:value, got %q", s)
	}
	op := Op(parts[1])
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpContains:
	default:
		return nil, fmt.Errorf("filter: unknown comparator %q", parts[1])
	}

	var value any = parts[2]
	if n, err := strconv.ParseFloat(parts[2], 64); err == nil {
		value = n
	} else if b, err := strconv.ParseBool(parts[2]); err == nil {
		value = b
	}
	return ByField(parts[0], op, value), nil
}
