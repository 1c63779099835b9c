package oauth

import (
	"net/url"
	"strings"

	"github.com/kodustech/mcp-manager/pkg/errors"
)

// CanonicalResourceURI normalizes baseURL into the RFC 8707 resource
// identifier used to scope issued tokens to one server: scheme and host
// lowercased, default ports dropped, trailing slash stripped unless the
// path is root, query and fragment removed.
func CanonicalResourceURI(baseURL string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", errors.NewValidationError("invalid base URL", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.NewValidationError("base URL must be absolute", nil)
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())

	authority := host
	if port := parsed.Port(); port != "" && !isDefaultPort(scheme, port) {
		authority = host + ":" + port
	}

	path := parsed.EscapedPath()
	switch path {
	case "", "/":
		path = "/"
	default:
		path = strings.TrimSuffix(path, "/")
	}

	return scheme + "://" + authority + path, nil
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}
