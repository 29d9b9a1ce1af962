package source

import (
	"errors"
	"fmt"
)

// AuthError indicates that a remote endpoint rejected the configured
// credentials. Retrying without a configuration change will not help,
// so callers log it louder than transient failures.
type AuthError struct {
	SourceType SourceType
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.SourceType, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// SourceType identifies the remote endpoint an error came from.
type SourceType string

const (
	SourceTypeEmail    SourceType = "email"
	SourceTypeTelegram SourceType = "telegram"
)
