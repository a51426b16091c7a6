package sanitizer

import (
	"net/url"
	"strings"
)

// NormalizeBaseURL lowercases the host and drops the trailing slash, query and fragment,
// so paths can be appended to the result directly.
func NormalizeBaseURL(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}

	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
