package cli

import (
	"fmt"
	"net/url"
)

// validateHostURL checks that host is a plain http(s) base URL. Paths,
// queries, and fragments are rejected because the client appends /v1 paths
// itself.
func validateHostURL(host string) error {
	if host == "" {
		return fmt.Errorf("no gateway host configured, set --host or %s", envHost)
	}
	u, err := url.Parse(host)
	if err != nil {
		return fmt.Errorf("invalid host URL %q: %w", host, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("host URL %q must use http or https", host)
	}
	if u.Host == "" {
		return fmt.Errorf("host URL %q has no host component", host)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("host URL %q must not carry a path, query, or fragment", host)
	}
	return nil
}
