package model

// TeamMember maps a GitHub login to the team that owns its changes.
type TeamMember struct {
	GitHubUsername string
	Team           string
}
