package ibranch

import (
	"context"

	"github.com/corray333/coffeeshop/internal/service/models/branch"
)

// IBranchRepository reads branches. Get returns nil without error for an unknown id.
type IBranchRepository interface {
	Get(ctx context.Context, id string) (*branch.Branch, error)
}
