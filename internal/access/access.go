// Package access decides whether a requester may operate on a tenant-owned resource.
package access

import (
	"errors"
)

var (
	ErrForbidden = errors.New("forbidden")
)

// Authorize allows the operation only when the requester acts for the tenant that owns the
// resource. An empty requester tenant never matches.
func Authorize(requesterTenant, resourceTenant string) error {
	if requesterTenant == "" || requesterTenant != resourceTenant {
		return ErrForbidden
	}
	return nil
}
