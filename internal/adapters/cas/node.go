package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/memo/internal/adapters/fs" //nolint:depguard // Store hashes entries with the fs hasher
	"go.trai.ch/memo/internal/core/ports"
)

// NodeID is the unique identifier for the artifact store Graft node.
const NodeID graft.ID = "adapter.artifact_store"

func init() {
	graft.Register(graft.Node[ports.ArtifactStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{fs.HasherNodeID},
		Run: func(ctx context.Context) (ports.ArtifactStore, error) {
			hasher, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			return NewStore(hasher), nil
		},
	})
}
