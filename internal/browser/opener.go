// Package browser holds the coordinator's platform collaborators: the
// capability that opens a URL outside the process, and the probe that
// detects whether the native UAE PASS app is installed.
package browser

import (
	"fmt"

	"github.com/pkg/browser"
)

// Opener is the external-open capability. The coordinator hands it an
// authorization or logout URL and does not depend on which mechanism
// (system browser, embedded web surface, native app handoff) performs the
// open; redirects come back through the gate's delivery channels.
type Opener interface {
	Open(url string) error
}

// SystemOpener opens URLs in the operating system's default browser.
type SystemOpener struct{}

// Open opens the URL in the default browser
func (SystemOpener) Open(url string) error {
	if err := browser.OpenURL(url); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
