package braid

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Subspec represents a chain header's payload-specification declaration, a
// namespaced identifier of the form "prefix/version" where version is a
// semantic version.
type Subspec struct {
	Prefix  string
	Version *semver.Version
}

// ParseSubspec parses a subspec string of the form "prefix/1.2.3".
func ParseSubspec(s string) (Subspec, error) {
	prefix, version, found := strings.Cut(s, "/")
	if !found || prefix == "" {
		return Subspec{}, fmt.Errorf("subspec %q is not of the form prefix/version", s)
	}

	v, err := semver.StrictNewVersion(version)
	if err != nil {
		return Subspec{}, fmt.Errorf("subspec %q version: %w", s, err)
	}

	return Subspec{Prefix: prefix, Version: v}, nil
}

// Satisfies reports whether the subspec's version satisfies the constraints.
func (s Subspec) Satisfies(c *semver.Constraints) bool {
	return c.Check(s.Version)
}

// String implements the fmt.Stringer interface.
func (s Subspec) String() string {
	return fmt.Sprintf("%s/%s", s.Prefix, s.Version)
}
