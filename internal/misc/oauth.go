// Package misc holds small helpers shared by the login commands.
package misc

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseCallbackURL extracts the redirect parameters from a callback URL pasted by the user.
// It accepts a full URL, a host/path without scheme, or a bare query string, and reads the
// fragment as a fallback. It returns nil when the input is empty.
func ParseCallbackURL(input string) (url.Values, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		if strings.HasPrefix(candidate, "?") {
			candidate = "http://localhost" + candidate
		} else if strings.ContainsAny(candidate, "/?#") || strings.Contains(candidate, ":") {
			candidate = "http://" + candidate
		} else if strings.Contains(candidate, "=") {
			candidate = "http://localhost/?" + candidate
		} else {
			return nil, fmt.Errorf("invalid callback URL")
		}
	}

	parsedURL, err := url.Parse(candidate)
	if err != nil {
		return nil, err
	}

	query := parsedURL.Query()
	if parsedURL.Fragment != "" {
		if fragQuery, errFrag := url.ParseQuery(parsedURL.Fragment); errFrag == nil {
			for _, key := range []string{"code", "state", "error", "error_description"} {
				if query.Get(key) == "" && fragQuery.Get(key) != "" {
					query.Set(key, fragQuery.Get(key))
				}
			}
		}
	}

	out := url.Values{}
	for _, key := range []string{"code", "state", "error", "error_description"} {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			out.Set(key, v)
		}
	}
	if out.Get("code") == "" && out.Get("error") == "" {
		return nil, fmt.Errorf("callback URL missing code")
	}
	return out, nil
}
