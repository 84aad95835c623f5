package fixtures

import "errors"

// ErrInvalidToken is returned when a session token fails validation.
var ErrInvalidToken = errors.New("invalid token")

// AuthenticateUser validates a session token and loads the account.
func AuthenticateUser(token string) (string, error) {
	if !validateToken(token) {
		return "", ErrInvalidToken
	}
	return lookupAccount(token), nil
}

func validateToken(token string) bool {
	return len(token) >= 16
}

func lookupAccount(token string) string {
	return "account-" + token[:8]
}
