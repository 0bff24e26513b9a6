package services

import "strings"

type Role string

const (
	RolePayer Role = "payer"
	RolePayee Role = "payee"
	RoleAdmin Role = "admin"
)

// ParseRole maps a credential's role claim onto a Role. "user" and "client"
// are accepted as payer for tokens minted by older issuers.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "payer", "user", "client":
		return RolePayer, true
	case "payee", "provider", "lawyer":
		return RolePayee, true
	case "admin":
		return RoleAdmin, true
	}
	return "", false
}

// Actor is the caller, resolved once at the request boundary and passed
// explicitly into every core operation.
type Actor struct {
	ID    uint
	Role  Role
	Email string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanIssue reports whether the actor may create and manage payment links.
func (a Actor) CanIssue() bool { return a.Role == RolePayee || a.Role == RoleAdmin }

// owns reports whether the actor may manage a resource issued by ownerID.
func (a Actor) owns(ownerID uint) bool {
	return a.IsAdmin() || (a.ID != 0 && a.ID == ownerID)
}
