// Package model holds the wire and storage types shared by the API, the
// store and the CLI, and converts them to solver inputs.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	yaml "gopkg.in/yaml.v3"

	"vrpsolver/internal/opt"
)

// Quantity is a capacity or delivery amount as it appears on the wire: null,
// a single integer, or a list whose first element is the authoritative
// dimension. The zero value is null.
type Quantity struct {
	scalar *int64
	vector []int64
}

// Scalar returns a Quantity holding n.
func Scalar(n int64) Quantity { return Quantity{scalar: &n} }

// Vector returns a Quantity holding the listed dimensions.
func Vector(dims ...int64) Quantity {
	if dims == nil {
		dims = []int64{}
	}
	return Quantity{vector: dims}
}

// first returns the authoritative amount, or false when there is none.
func (q Quantity) first() (int64, bool) {
	if q.scalar != nil {
		return *q.scalar, true
	}
	if len(q.vector) > 0 {
		return q.vector[0], true
	}
	return 0, false
}

// IsNull reports whether q carries no amount. An empty list counts as null.
func (q Quantity) IsNull() bool {
	_, ok := q.first()
	return !ok
}

// Capacity normalizes q as a vehicle capacity; null is unlimited.
func (q Quantity) Capacity() opt.Capacity {
	if n, ok := q.first(); ok {
		return opt.Limit(n)
	}
	return opt.Unlimited()
}

// Delivery normalizes q as a job delivery amount; null means 1 unit.
func (q Quantity) Delivery() int64 {
	if n, ok := q.first(); ok {
		return n
	}
	return 1
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	switch {
	case q.scalar != nil:
		return json.Marshal(*q.scalar)
	case q.vector != nil:
		return json.Marshal(q.vector)
	}
	return []byte("null"), nil
}

func (q *Quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*q = Quantity{}
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return nil
	case b[0] == '[':
		var v []int64
		if err := json.Unmarshal(b, &v); err != nil {
			return fmt.Errorf("quantity list: %w", err)
		}
		*q = Vector(v...)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	q.scalar = &n
	return nil
}

func (q Quantity) MarshalYAML() (any, error) {
	switch {
	case q.scalar != nil:
		return *q.scalar, nil
	case q.vector != nil:
		return q.vector, nil
	}
	return nil, nil
}

func (q *Quantity) UnmarshalYAML(node *yaml.Node) error {
	*q = Quantity{}
	switch node.Kind {
	case yaml.SequenceNode:
		var v []int64
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("quantity list: %w", err)
		}
		*q = Vector(v...)
		return nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil
		}
		var n int64
		if err := node.Decode(&n); err != nil {
			return fmt.Errorf("quantity: %w", err)
		}
		q.scalar = &n
		return nil
	}
	return fmt.Errorf("quantity: unexpected YAML node at line %d", node.Line)
}
