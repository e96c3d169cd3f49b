package browser

import "context"

// AppDetector probes whether the native UAE PASS app is installed on the
// device. Detection is platform-specific (package lookup on Android, URL
// scheme check on iOS), so embedders inject their own implementation; the
// coordinator consults it once during initialization and caches the result.
type AppDetector interface {
	Installed(ctx context.Context) (bool, error)
}

// NotInstalledDetector is the default probe. It always reports the app as
// absent, which routes authentication through the web login trust tier.
type NotInstalledDetector struct{}

// Installed always reports false
func (NotInstalledDetector) Installed(context.Context) (bool, error) {
	return false, nil
}
