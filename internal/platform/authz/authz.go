// Package authz decides which routes and actions an identity may reach. The
// role matrix is static: it mirrors the backend's own role enforcement so
// that forbidden navigation is stopped before any network call.
package authz

import (
	"fmt"

	"github.com/careflow/careflow/internal/platform/identity"
)

// Route names a protected UI region.
type Route string

const (
	RouteDashboard      Route = "dashboard"
	RoutePatientSearch  Route = "patients"
	RoutePatientProfile Route = "patient-profile"
	RouteSessionCreate  Route = "session-create"
	RouteDoctorQueue    Route = "doctor-queue"
	RouteSessionReview  Route = "session-review"
	RouteUserManagement Route = "user-management"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	// Granted allows the navigation or action.
	Granted Decision = iota
	// RedirectLogin means no identity is present; the caller must route the
	// user to the login boundary.
	RedirectLogin
	// RedirectUnauthorized means the identity's role is not in the allowed
	// set; the caller must route to the unauthorized terminal view.
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Granted:
		return "granted"
	case RedirectLogin:
		return "redirect-login"
	case RedirectUnauthorized:
		return "redirect-unauthorized"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// routeRoles is the static role -> route matrix. Routes absent from the map
// are open to every authenticated role.
var routeRoles = map[Route][]identity.Role{
	RouteDoctorQueue:    {identity.RoleDoctor, identity.RoleAdmin},
	RouteSessionReview:  {identity.RoleDoctor, identity.RoleAdmin},
	RouteUserManagement: {identity.RoleAdmin},
}

// Authorize checks whether ident may enter route.
func Authorize(ident *identity.Identity, route Route) Decision {
	if ident == nil {
		return RedirectLogin
	}
	allowed, restricted := routeRoles[route]
	if !restricted {
		return Granted
	}
	for _, role := range allowed {
		if ident.Role == role {
			return Granted
		}
	}
	return RedirectUnauthorized
}

// RequireRole returns an error unless ident holds one of the given roles.
// Used for action-level gates (e.g. only nurses and admins create sessions).
func RequireRole(ident *identity.Identity, roles ...identity.Role) error {
	if ident == nil {
		return fmt.Errorf("not authenticated")
	}
	for _, role := range roles {
		if ident.Role == role {
			return nil
		}
	}
	return fmt.Errorf("role %s is not permitted (need one of %v)", ident.Role, roles)
}
