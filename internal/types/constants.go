package types

// ContextUserIDKey is where the auth middleware stores the authenticated
// user id on the gin context.
const ContextUserIDKey = "userID"

// Roles. Only Manager may mutate projects and memberships.
const (
	RoleManager   = "Manager"
	RoleDeveloper = "Developer"
	RoleTester    = "Tester"
)

// Project statuses.
const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
)
