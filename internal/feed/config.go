package feed

import (
	"fmt"

	"github.com/viralforge/suggestbox/internal/domain"
)

// Config is the client-facing application configuration, constructed once at
// startup and passed by reference to every component that needs it. There is
// no ambient lookup.
type Config struct {
	APIKey        string
	AuthDomain    string
	ProjectID     string
	StorageBucket string
	SenderID      string
	AppID         string
}

// Validate checks the required-field precondition before any request is
// issued. An empty APIKey is the checked field; the remaining fields are
// assumed present when it is.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: api key is empty", domain.ErrInvalidConfig)
	}
	return nil
}

// SuggestionsPath builds the fixed logical collection path for the shared
// feed, scoped by the configured project namespace.
func (c Config) SuggestionsPath() string {
	return fmt.Sprintf("artifacts/%s/public/data/suggestions", c.ProjectID)
}
