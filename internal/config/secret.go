package config

// Secret wraps values that must never appear in logs or dumps.
type Secret string

const redacted = "[REDACTED]"

// String redacts the value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString redacts the value under %#v.
func (s Secret) GoString() string {
	return "Secret(" + redacted + ")"
}

// Value returns the raw secret.
func (s Secret) Value() string {
	return string(s)
}

// IsSet reports whether the secret holds a value.
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalYAML redacts the value when a config is dumped.
func (s Secret) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// MarshalText redacts the value for JSON and text encoders.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
