package config

import (
	"fmt"
	"net/url"
	"strings"
)

// SanitizeAPIHost validates and normalizes a collection API host value.
// It returns "scheme://host[:port]" in lowercase, defaulting to https when
// no scheme was given. Paths, queries, fragments, wildcards, and empty
// values are rejected.
func SanitizeAPIHost(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return "", fmt.Errorf("api host cannot be empty")
	}

	cleaned = strings.ToLower(cleaned)

	scheme := "https"
	if strings.HasPrefix(cleaned, "http://") {
		scheme = "http"
		cleaned = strings.TrimPrefix(cleaned, "http://")
	} else {
		cleaned = strings.TrimPrefix(cleaned, "https://")
	}

	// Remove a single trailing slash (root path)
	cleaned = strings.TrimSuffix(cleaned, "/")

	if strings.ContainsAny(cleaned, " \t\r\n") {
		return "", fmt.Errorf("api host cannot contain whitespace")
	}
	if strings.Contains(cleaned, "*") {
		return "", fmt.Errorf("wildcards are not allowed in the api host")
	}

	// Use url.Parse to validate host[:port] without allowing paths or queries.
	u, err := url.Parse(scheme + "://" + cleaned)
	if err != nil {
		return "", fmt.Errorf("invalid api host format")
	}

	if u.Host == "" || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("api host must not include path, query, or fragment")
	}

	return scheme + "://" + u.Host, nil
}
