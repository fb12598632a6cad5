package worker

type Permission string

const (
	PermissionMarkCreate     Permission = "mark.create"
	PermissionMarkViewOwn    Permission = "mark.view_own"
	PermissionMarkViewAll    Permission = "mark.view_all"
	PermissionChainVerify    Permission = "chain.verify"
	PermissionAlertView      Permission = "alert.view"
	PermissionScheduleManage Permission = "schedule.manage"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionMarkCreate,
		PermissionMarkViewOwn,
		PermissionMarkViewAll,
		PermissionChainVerify,
		PermissionAlertView,
		PermissionScheduleManage,
	},
	RoleSupervisor: {
		PermissionMarkCreate,
		PermissionMarkViewOwn,
		PermissionMarkViewAll,
		PermissionChainVerify,
		PermissionAlertView,
	},
	RoleWorker: {
		PermissionMarkCreate,
		PermissionMarkViewOwn,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}
