package gateway

import "context"

// SecretSource supplies the shared network secret checked during the
// pre-connection handshake. It is read on every handshake so that an admin
// rotation takes effect without a restart.
type SecretSource interface {
	NetworkSecret(ctx context.Context) (string, error)
}

// StaticSecret is a SecretSource backed by a fixed string, for deployments
// without a key-value store and for tests.
type StaticSecret string

// NetworkSecret returns the fixed secret.
func (s StaticSecret) NetworkSecret(context.Context) (string, error) {
	return string(s), nil
}
