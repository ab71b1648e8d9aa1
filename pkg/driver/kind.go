package driver

import "strings"

// Kind selects the browser engine a session is launched with.
type Kind string

const (
	Chrome  Kind = "chrome"
	Firefox Kind = "firefox"
	Edge    Kind = "edge"

	DefaultKind = Chrome
)

// ParseKind maps a configuration value onto a Kind. Unknown and empty values fall back to DefaultKind.
func ParseKind(value string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case Firefox:
		return Firefox
	case Edge:
		return Edge
	default:
		return DefaultKind
	}
}

func (k Kind) String() string {
	return string(k)
}
