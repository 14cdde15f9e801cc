package auth

// Role names used across phase handoffs. Supplied by the identity provider
// and treated as opaque trusted input by the core.
const (
	RoleTester        = "Tester"
	RoleTestExecutive = "Test Executive"
	RoleReportOwner   = "Report Owner"
	RoleDataOwner     = "Data Owner"
	RoleDataExecutive = "Data Executive"
)
