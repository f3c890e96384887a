package auth

import "github.com/issuetracker/issues-api/internal/core/domain"

// Allows reports whether user may perform an operation open to the required
// roles. ADMIN is allowed everything; any other role must be listed
// explicitly. MAINTAINER and REPORTER are not ordered.
func Allows(user *domain.User, required ...domain.Role) bool {
	if user == nil {
		return false
	}
	if user.Role == domain.RoleAdmin {
		return true
	}
	for _, r := range required {
		if user.Role == r {
			return true
		}
	}
	return false
}
