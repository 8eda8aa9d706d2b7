package config

const redacted = "[REDACTED]"

// Secret is a credential that never leaves the process through formatting
// or marshaling.
type Secret string

// Reveal returns the secret value.
func (s Secret) Reveal() string {
	return string(s)
}

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString implements fmt.GoStringer.
func (s Secret) GoString() string {
	return s.String()
}

// MarshalText implements encoding.TextMarshaler, used by both JSON and
// YAML encoders.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
