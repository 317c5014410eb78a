package rbac

// Permissions by role. Learners may relay runtime messages and read back
// their state; the event log is for teachers.
var RolePermissions = map[string][]string{
	"learner": {
		"package:view",
		"package:download",
		"bridge:relay",
		"bridge:state",
	},
	"teacher": {
		"package:*",
		"bridge:*",
	},
	"admin": {
		"*",
	},
}
