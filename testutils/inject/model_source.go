package inject

import (
	"context"

	"go.viam.com/grasping/services/worldmanager"
)

// ModelSource is an injected model source.
type ModelSource struct {
	worldmanager.ModelSource
	RefreshFunc func(ctx context.Context) ([]worldmanager.Model, error)
	ReadFunc    func(ctx context.Context) ([]worldmanager.Model, error)
}

// Refresh calls the injected Refresh or the real version.
func (ms *ModelSource) Refresh(ctx context.Context) ([]worldmanager.Model, error) {
	if ms.RefreshFunc == nil {
		return ms.ModelSource.Refresh(ctx)
	}
	return ms.RefreshFunc(ctx)
}

// Read calls the injected Read or the real version.
func (ms *ModelSource) Read(ctx context.Context) ([]worldmanager.Model, error) {
	if ms.ReadFunc == nil {
		return ms.ModelSource.Read(ctx)
	}
	return ms.ReadFunc(ctx)
}
