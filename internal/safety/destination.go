package safety

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Reasons a destination is refused. Match with errors.Is.
var (
	ErrBlockedPrivateAddress = errors.New("private address")
	ErrBlockedNotAllowlisted = errors.New("host not allowlisted")
	ErrBlockedBadProtocol    = errors.New("invalid protocol")
	ErrMalformed             = errors.New("malformed url")
)

// DestinationError describes why a URL was refused.
type DestinationError struct {
	Reason error
	URL    string
	Host   string
	Scheme string
}

func (e *DestinationError) Error() string {
	switch e.Reason {
	case ErrBlockedPrivateAddress:
		return fmt.Sprintf("Blocked: Private IP address (%s)", e.Host)
	case ErrBlockedNotAllowlisted:
		return fmt.Sprintf("Blocked: Host not in allowlist (%s)", e.Host)
	case ErrBlockedBadProtocol:
		return fmt.Sprintf("Blocked: Invalid protocol (%s:)", e.Scheme)
	default:
		return fmt.Sprintf("Invalid URL: %s", e.URL)
	}
}

func (e *DestinationError) Unwrap() error { return e.Reason }

// DestinationValidator checks outbound URLs without any network I/O, so it
// cannot see DNS names that resolve to private addresses.
type DestinationValidator struct {
	private []*regexp.Regexp
	allowed map[string]struct{}
}

// NewDestinationValidator builds a validator. Patterns are tested in order.
func NewDestinationValidator(privatePatterns []*regexp.Regexp, allowedHosts []string) *DestinationValidator {
	allowed := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		allowed[h] = struct{}{}
	}
	return &DestinationValidator{private: privatePatterns, allowed: allowed}
}

// Validate returns nil when raw is an allowed destination, otherwise a
// *DestinationError. Checks run in order: private address, allowlist, scheme.
func (v *DestinationValidator) Validate(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" {
		return &DestinationError{Reason: ErrMalformed, URL: raw}
	}

	// Host names are case-insensitive on the wire; the allowlist match itself is exact.
	host := strings.ToLower(u.Hostname())

	for _, re := range v.private {
		if re.MatchString(host) {
			return &DestinationError{Reason: ErrBlockedPrivateAddress, URL: raw, Host: host}
		}
	}
	if _, ok := v.allowed[host]; !ok {
		return &DestinationError{Reason: ErrBlockedNotAllowlisted, URL: raw, Host: host}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &DestinationError{Reason: ErrBlockedBadProtocol, URL: raw, Host: host, Scheme: u.Scheme}
	}
	return nil
}
