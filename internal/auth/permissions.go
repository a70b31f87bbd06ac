package auth

import "errors"

// RBAC роли и разрешения
const (
	RoleTraveler = "traveler"
	RoleSchool   = "school"
	RoleAdmin    = "admin"
)

const (
	PermBookingRead        = "bookings:read"
	PermBookingCancel      = "bookings:cancel"
	PermBookingOutcome     = "bookings:outcome"
	PermBookingCorrect     = "bookings:correct"
	PermFinanceRead        = "finance:read"
	PermTransactionRelease = "transactions:release"
	PermSchoolVerify       = "schools:verify"
)

// Permissions список разрешений
var Permissions = map[string][]string{
	RoleAdmin: {
		PermBookingRead,
		PermBookingCancel,
		PermBookingOutcome,
		PermBookingCorrect,
		PermFinanceRead,
		PermTransactionRelease,
		PermSchoolVerify,
	},
	RoleSchool: {
		PermBookingRead,
		PermBookingOutcome,
		PermFinanceRead,
	},
	RoleTraveler: {
		PermBookingRead,
		PermBookingCancel,
	},
}

// HasPermission проверяет есть ли у роли указанное разрешение
func HasPermission(role, permission string) bool {
	permissions, exists := Permissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// ValidateRole проверяет валидность роли
func ValidateRole(role string) error {
	switch role {
	case RoleAdmin, RoleSchool, RoleTraveler:
		return nil
	default:
		return errors.New("invalid role")
	}
}
