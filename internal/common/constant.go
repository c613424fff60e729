package common

// Provider names used as the first half of a credential key.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
	ProviderJira   = "jira"
)

// StateQueryParam is the redirect query parameter carrying the state token.
const StateQueryParam = "state"
