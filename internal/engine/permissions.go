package engine

import (
	"context"
	"fmt"

	"gorm-forestadmin/internal/metadata"
)

// Authorizer decides whether a user may compute a chart.
type Authorizer interface {
	CanExecuteChart(ctx context.Context, user *metadata.UserContext, req *ChartRequest) (bool, error)
}

// CheckChartPermission returns nil when user may compute req, a FORBIDDEN
// AppError when the permissions deny it.
func CheckChartPermission(ctx context.Context, a Authorizer, user *metadata.UserContext, req *ChartRequest) error {
	if user == nil {
		return UnauthorizedError("Missing auth token")
	}
	if a == nil {
		return ForbiddenError()
	}
	allowed, err := a.CanExecuteChart(ctx, user, req)
	if err != nil {
		return fmt.Errorf("check chart permission: %w", err)
	}
	if !allowed {
		return ForbiddenError()
	}
	return nil
}
