package helper

import (
	"fmt"
	"net/url"
)

// ValidateURL checks that raw is an absolute http(s) URL. It does not
// contact the host.
func ValidateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("invalid feed URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("feed URL %q has no host", raw)
	}
	return nil
}
