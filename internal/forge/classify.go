// Package forge provides the pull-request forge adapter for taskctl.
// This file classifies gh CLI failures into the error taxonomy.
package forge

import (
	"fmt"
	"strings"

	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

// Error message patterns, matched case-insensitively against gh output.
//
//nolint:gochecknoglobals // Read-only pattern tables
var (
	authPatterns = []string{
		"authentication failed",
		"not logged in",
		"gh auth login",
		"bad credentials",
		"401",
	}
	networkPatterns = []string{
		"network",
		"timeout",
		"timed out",
		"connection refused",
		"could not resolve",
		"502",
		"503",
	}
	notFoundPatterns = []string{
		"not found",
		"no pull requests found",
		"404",
	}
)

// matchesAny reports whether the lowered message contains any pattern.
func matchesAny(lower string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// classifyError wraps a raw gh failure with the matching sentinel:
// auth -> ErrForgeAuthFailed, network -> ErrForgeUnavailable,
// missing resource -> ErrPRNotFound, anything else -> ErrForgeOperation.
func classifyError(err error) error {
	lower := strings.ToLower(err.Error())
	switch {
	case matchesAny(lower, authPatterns):
		return fmt.Errorf("%w: %w", taskctlerrors.ErrForgeAuthFailed, err)
	case matchesAny(lower, networkPatterns):
		return fmt.Errorf("%w: %w", taskctlerrors.ErrForgeUnavailable, err)
	case matchesAny(lower, notFoundPatterns):
		return fmt.Errorf("%w: %w", taskctlerrors.ErrPRNotFound, err)
	default:
		return fmt.Errorf("%w: %w", taskctlerrors.ErrForgeOperation, err)
	}
}
