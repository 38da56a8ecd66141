// Package access decides whether an acting user may mutate a stored resource.
package access

import (
	"context"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/apperrors"
)

const opAuthorize = "access.authorize"

// Owned is implemented by every resource that records its owning user.
type Owned interface {
	OwnerID() uint
}

// Accessor loads a resource by id. It must fail with apperrors.ErrNotFound when the id does not resolve.
type Accessor[T Owned] func(ctx context.Context, id uint) (T, error)

// Authorize loads the resource and checks that actingUserID owns it.
// Absent resources fail with NotFound; resources owned by someone else fail with Forbidden.
func Authorize[T Owned](ctx context.Context, actingUserID, resourceID uint, load Accessor[T]) (T, error) {
	var zero T
	resource, err := load(ctx, resourceID)
	if err != nil {
		return zero, err
	}
	if resource.OwnerID() != actingUserID {
		return zero, apperrors.New(apperrors.ErrForbidden, opAuthorize, "not_owner", "Access denied")
	}
	return resource, nil
}
