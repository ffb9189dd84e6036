package config

type SecurityConfig interface {
	GetEncryptionSecret() string
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetEncryptionSecret returns the secret the token cipher derives its key
// from. There is no usable default: an empty value must fail closed at
// startup rather than silently storing tokens in the clear.
func (Security) GetEncryptionSecret() string {
	return GetEnv("ENCRYPTION_SECRET", "")
}
