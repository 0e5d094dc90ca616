package session

import (
	"fmt"
	"regexp"
)

// Session names become directory names under ~/.nexus/sessions, so the
// accepted alphabet stays narrow.
var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name is usable as a session name: lowercase
// letters, digits, '_' or '-', at most 64 characters.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}
