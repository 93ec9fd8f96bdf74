package ports

import (
	"context"

	"github.com/lunDreame/st-bridge/internal/domain/model"
)

// OptionsRepository persists the mutable exposure selection.
type OptionsRepository interface {
	Get(ctx context.Context) (*model.Options, error)
	Save(ctx context.Context, options *model.Options) error
}
