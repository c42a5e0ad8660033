package node

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bdougie/vidsplit/internal/models"
)

// Node is an operation the host can invoke by its stable identifier
type Node interface {
	ID() string
	Schema() Schema
	Invoke(ctx context.Context, inputs map[string]any) (*models.Envelope, error)
}

// Registry is a read-only set of nodes indexed by ID
type Registry struct {
	byID map[string]Node
}

// NewRegistry indexes nodes, rejecting nil nodes, empty and duplicate IDs
func NewRegistry(nodes ...Node) (Registry, error) {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		if n == nil {
			return Registry{}, fmt.Errorf("node must not be nil")
		}
		id := strings.TrimSpace(n.ID())
		if id == "" {
			return Registry{}, fmt.Errorf("node ID must not be empty")
		}
		if _, ok := byID[id]; ok {
			return Registry{}, fmt.Errorf("duplicate node %q", id)
		}
		byID[id] = n
	}
	return Registry{byID: byID}, nil
}

// Get looks up a node by ID
func (r Registry) Get(id string) (Node, bool) {
	if r.byID == nil {
		return nil, false
	}
	n, ok := r.byID[strings.TrimSpace(id)]
	return n, ok
}

// IDs returns the registered IDs in sorted order
func (r Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Invoke runs the node registered under id
func (r Registry) Invoke(ctx context.Context, id string, inputs map[string]any) (*models.Envelope, error) {
	n, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown node %q", id)
	}
	return n.Invoke(ctx, inputs)
}
