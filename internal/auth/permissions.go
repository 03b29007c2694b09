package auth

import (
	"errors"
	"fmt"
)

type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleReception     Role = "reception"
	RoleDoctor        Role = "doctor"
	RoleNursing       Role = "nursing"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleReception, RoleDoctor, RoleNursing:
		return true
	}
	return false
}

type Permission string

const (
	PatientsRead   Permission = "patients:read"
	PatientsWrite  Permission = "patients:write"
	PatientsDelete Permission = "patients:delete"

	DoctorsRead   Permission = "doctors:read"
	DoctorsWrite  Permission = "doctors:write"
	DoctorsDelete Permission = "doctors:delete"

	AppointmentsRead   Permission = "appointments:read"
	AppointmentsWrite  Permission = "appointments:write"
	AppointmentsCancel Permission = "appointments:cancel"

	RecordsRead  Permission = "records:read"
	RecordsWrite Permission = "records:write"

	InvoicesRead  Permission = "invoices:read"
	InvoicesWrite Permission = "invoices:write"

	BedsRead  Permission = "beds:read"
	BedsWrite Permission = "beds:write"

	UsersRead  Permission = "users:read"
	UsersWrite Permission = "users:write"
)

var (
	allRoles   = []Role{RoleAdministrator, RoleReception, RoleDoctor, RoleNursing}
	adminOnly  = []Role{RoleAdministrator}
	frontDesk  = []Role{RoleAdministrator, RoleReception}
	clinicians = []Role{RoleAdministrator, RoleDoctor, RoleNursing}
)

// permissions is the static role table. It is read-only after init.
var permissions = map[Permission][]Role{
	PatientsRead:   allRoles,
	PatientsWrite:  frontDesk,
	PatientsDelete: adminOnly,

	DoctorsRead:   allRoles,
	DoctorsWrite:  adminOnly,
	DoctorsDelete: adminOnly,

	AppointmentsRead:   allRoles,
	AppointmentsWrite:  {RoleAdministrator, RoleReception, RoleDoctor},
	AppointmentsCancel: {RoleAdministrator, RoleReception, RoleDoctor},

	RecordsRead:  clinicians,
	RecordsWrite: {RoleAdministrator, RoleDoctor},

	InvoicesRead:  frontDesk,
	InvoicesWrite: frontDesk,

	BedsRead:  {RoleAdministrator, RoleReception, RoleNursing},
	BedsWrite: {RoleAdministrator, RoleNursing},

	UsersRead:  adminOnly,
	UsersWrite: adminOnly,
}

// ErrUnknownPermission means a route was wired with a permission the table
// does not define.
var ErrUnknownPermission = errors.New("unknown permission")

// Allowed reports whether role holds perm.
func Allowed(role Role, perm Permission) (bool, error) {
	roles, ok := permissions[perm]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownPermission, perm)
	}
	for _, r := range roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}
