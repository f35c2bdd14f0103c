// Package git provides the local git adapter for taskctl.
// This file provides branch naming utilities.
package git

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/taskctl/taskctl/internal/constants"
)

// slugRegex matches any run of characters that is NOT a lowercase letter or
// digit; each run collapses to a single hyphen.
var slugRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a branch-safe slug from a task title:
// lowercased, non-alphanumeric runs replaced with hyphens, trimmed, and
// capped at MaxSlugLength.
//
// Example: "Add OAuth2 support!" -> "add-oauth2-support"
func Slug(title string) string {
	s := strings.ToLower(title)
	s = slugRegex.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > constants.MaxSlugLength {
		s = strings.Trim(s[:constants.MaxSlugLength], "-")
	}
	if s == "" {
		s = "task"
	}
	return s
}

// BranchName builds the deterministic task branch name
// "feature/<plan-short>/<task-short>-<slug>".
func BranchName(planShort, taskShort, title string) string {
	return fmt.Sprintf("%s/%s/%s-%s", constants.BranchPrefix,
		strings.ToLower(planShort), strings.ToLower(taskShort), Slug(title))
}
