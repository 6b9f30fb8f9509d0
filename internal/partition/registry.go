package partition

import (
	"errors"
	"fmt"

	"github.com/talowa/go-tier-cache/config"
)

// ErrInvalidPartition reports a reference to a partition missing from the
// table. This is a caller programming error and the only tier-layer error
// class that surfaces synchronously to callers.
var ErrInvalidPartition = errors.New("invalid partition")

// Registry is the read-only partition table, fixed at initialization.
type Registry struct {
	byName map[string]*config.PartitionCfg
	names  []string
}

func NewRegistry(partitions []config.PartitionCfg) *Registry {
	r := &Registry{
		byName: make(map[string]*config.PartitionCfg, len(partitions)),
		names:  make([]string, 0, len(partitions)),
	}
	for i := range partitions {
		p := &partitions[i]
		r.byName[p.Name] = p
		r.names = append(r.names, p.Name)
	}
	return r
}

func (r *Registry) ConfigFor(name string) (*config.PartitionCfg, error) {
	if cfg, ok := r.byName[name]; ok {
		return cfg, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidPartition, name)
}

// Names returns partition names in table order.
func (r *Registry) Names() []string {
	return r.names
}

func (r *Registry) Len() int {
	return len(r.names)
}
