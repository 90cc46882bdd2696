package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

var (
	// Remote base URLs may carry basic-auth userinfo.
	credentialURL = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://[^/\s:@]+:[^/\s@]+@`)

	authHeader = regexp.MustCompile(`(?i)^(bearer|basic)\s+\S+`)
)

// RedactOptions lists what the service never writes to a log: credential
// fields and header values found on outbound sync requests, and URLs
// with embedded passwords.
func RedactOptions() []masq.Option {
	return []masq.Option{
		masq.WithFieldName("password"),
		masq.WithFieldName("token"),
		masq.WithFieldName("api_key"),
		masq.WithFieldName("authorization"),
		masq.WithFieldName("Authorization"),
		masq.WithFieldName("cookie"),
		masq.WithFieldName("Cookie"),
		masq.WithFieldPrefix("secret"),
		masq.WithRegex(credentialURL),
		masq.WithRegex(authHeader),
	}
}

// NewReplaceAttr returns a slog ReplaceAttr hook applying RedactOptions
// plus extra.
func NewReplaceAttr(extra ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(append(RedactOptions(), extra...)...)
}
