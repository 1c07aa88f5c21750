// Package tenancy holds the tenant scope guard: the single choke point that
// decides which organization boundary applies to a request. Every
// tenant-scoped read and write in the system goes through these functions.
package tenancy

import (
	"github.com/frahmantamala/clinic-management/internal"
)

// ResolveScope returns the organization filter for reads. A super-admin gets
// the requested scope verbatim (nil means no restriction, see all
// organizations). Any other actor is always pinned to its own organization,
// whatever the request asked for.
func ResolveScope(requestedOrgID *string, actorOrgID string, superAdmin bool) *string {
	if superAdmin {
		return requestedOrgID
	}
	return &actorOrgID
}

// ResolveOrganizationID returns the organization a write targets. A
// super-admin must name the organization explicitly; a tenant actor always
// writes into its own organization and a mismatching request value is
// silently overridden.
func ResolveOrganizationID(requestOrgID, actorOrgID string, superAdmin bool) (string, error) {
	if superAdmin {
		if requestOrgID == "" {
			return "", internal.ErrMissingOrgID
		}
		return requestOrgID, nil
	}
	return actorOrgID, nil
}

// CanAccess reports whether a record in recordOrgID is visible under the
// resolved scope. Callers translate a false into NotFound, never Forbidden,
// so cross-tenant probing cannot confirm a record exists.
func CanAccess(scope *string, recordOrgID string) bool {
	if scope == nil {
		return true
	}
	return *scope == recordOrgID
}
