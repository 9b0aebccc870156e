package rbac

// Role constants
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// Permission constants
const (
	PermViewQueue        = "view_queue"
	PermViewAudit        = "view_audit"
	PermProposeAction    = "propose_action"
	PermQueueAction      = "queue_action"
	PermExecuteAction    = "execute_action"
	PermUndoRedo         = "undo_redo"
	PermManageGuardrails = "manage_guardrails"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleViewer: {
		PermViewQueue, PermViewAudit, PermProposeAction,
	},
	RoleEditor: {
		PermViewQueue, PermViewAudit, PermProposeAction,
		PermQueueAction, PermExecuteAction, PermUndoRedo,
		// Editor CANNOT: PermManageGuardrails
	},
	RoleAdmin: {
		PermViewQueue, PermViewAudit, PermProposeAction,
		PermQueueAction, PermExecuteAction, PermUndoRedo,
		PermManageGuardrails,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}
