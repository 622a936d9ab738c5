package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// Duration is a time.Duration decoded from text such as "30m" in YAML or
// DTISET_* environment variables.
type Duration time.Duration

// UnmarshalText parses a non-negative Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

const redacted = "[REDACTED]"

// Secret holds a connection string with embedded credentials, such as the
// ChEMBL DSN or the Redis URL. Formatting and marshaling never expose it;
// Value returns the raw string for opening connections.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) GoString() string {
	return "Secret(" + redacted + ")"
}

// Value returns the raw secret.
func (s Secret) Value() string {
	return string(s)
}

// IsSet reports whether a value was configured.
func (s Secret) IsSet() bool {
	return s != ""
}

// Scheme returns the URL scheme of the secret, or "" when it does not parse
// as a URL. Key/value DSNs have no scheme.
func (s Secret) Scheme() string {
	u, err := url.Parse(string(s))
	if err != nil {
		return ""
	}
	return u.Scheme
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText stores text verbatim. JSON strings decode through it too.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
