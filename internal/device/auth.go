package device

import (
	"crypto/subtle"
	"fmt"

	"github.com/talkincode/smartcart/internal/domain"
)

// ErrDeviceToken is returned when a device presents a missing or wrong token.
var ErrDeviceToken = fmt.Errorf("%w: invalid device token", domain.ErrUnauthorized)

// Authenticator checks the pre-shared token of a physical cart.
type Authenticator struct {
	required bool
	tokens   map[string]string
}

func NewAuthenticator(required bool, tokens map[string]string) *Authenticator {
	t := make(map[string]string, len(tokens))
	for k, v := range tokens {
		t[k] = v
	}
	return &Authenticator{required: required, tokens: t}
}

// Verify accepts the device when its configured token matches. A device
// without a configured token is accepted unless tokens are required.
func (a *Authenticator) Verify(deviceID, token string) error {
	if deviceID == "" {
		return domain.Validationf("device ID is required")
	}
	want, ok := a.tokens[deviceID]
	if !ok {
		if a.required {
			return ErrDeviceToken
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(token)) != 1 {
		return ErrDeviceToken
	}
	return nil
}

// Required reports whether every device must present a token.
func (a *Authenticator) Required() bool {
	return a.required
}
