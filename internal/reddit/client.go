package reddit

import (
	"fmt"

	"github.com/credobot/credo/internal/domain"
)

// Provider constants
const (
	ProviderScript = "script"
	ProviderMock   = "mock"
)

// Credentials for Reddit script-app OAuth.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
}

// NewClient creates a Reddit client based on the provider name.
func NewClient(provider string, creds Credentials) (domain.RedditClient, error) {
	switch provider {
	case ProviderScript:
		if creds.ClientID == "" || creds.ClientSecret == "" {
			return nil, fmt.Errorf("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET are required for the script provider")
		}
		return NewScriptClient(creds), nil

	case ProviderMock:
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown reddit provider: %s (valid options: script, mock)", provider)
	}
}
