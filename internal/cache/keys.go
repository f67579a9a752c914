package cache

import "fmt"

// Aggregate keys without parameters
const (
	KeyAdminStatusCounts = "admin_projects_status_counts"
	KeyAdminLeads        = "admin_leads_overview"
	KeyAdminEarnings     = "admin_agency_earnings"
	KeyAdminDevelopers   = "admin_developers_list"
)

// AdminKeys are the admin dashboard aggregates touched by any project write
func AdminKeys() []string {
	return []string{KeyAdminStatusCounts, KeyAdminLeads, KeyAdminEarnings}
}

func FetcherEarningsKey(userID uint) string {
	return fmt.Sprintf("fetcher_earnings_%d", userID)
}

func ExecutionProjectsKey(userID uint) string {
	return fmt.Sprintf("execution_projects_%d", userID)
}

func ProjectUpdatesKey(projectID uint) string {
	return fmt.Sprintf("project_%d_updates", projectID)
}

func ProjectLogsKey(projectID uint) string {
	return fmt.Sprintf("project_%d_logs", projectID)
}
