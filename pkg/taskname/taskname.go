package taskname

const (
	// Group tasks
	GroupReap = "group:reap"

	// Member tasks
	MemberExpiryRun = "member:expiry:run"
)
