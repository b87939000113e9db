package braid_test

import (
	"testing"

	"github.com/Masterminds/semver/v3"

	"github.com/braidchain/pulse/foundation/braid"
)

func Test_ParseSubspec(t *testing.T) {
	subspec, err := braid.ParseSubspec("pulse-rng/1.0.0")
	if err != nil {
		t.Fatalf("Should be able to parse a valid subspec: %s", err)
	}

	if subspec.Prefix != "pulse-rng" {
		t.Fatalf("Should get back the right prefix: got %s", subspec.Prefix)
	}

	if subspec.Version.String() != "1.0.0" {
		t.Fatalf("Should get back the right version: got %s", subspec.Version)
	}

	if subspec.String() != "pulse-rng/1.0.0" {
		t.Fatalf("Should round trip through String: got %s", subspec)
	}
}

func Test_ParseSubspecInvalid(t *testing.T) {
	bad := []string{
		"",
		"pulse-rng",
		"/1.0.0",
		"pulse-rng/",
		"pulse-rng/one",
		"pulse-rng/1.0",
	}

	for _, s := range bad {
		if _, err := braid.ParseSubspec(s); err == nil {
			t.Fatalf("Should reject subspec %q.", s)
		}
	}
}

func Test_SubspecSatisfies(t *testing.T) {
	constraint, err := semver.NewConstraint("~1.0")
	if err != nil {
		t.Fatalf("Should be able to parse the constraint: %s", err)
	}

	tests := []struct {
		subspec string
		want    bool
	}{
		{"pulse-rng/1.0.0", true},
		{"pulse-rng/1.0.9", true},
		{"pulse-rng/1.1.0", false},
		{"pulse-rng/2.0.0", false},
		{"pulse-rng/0.9.0", false},
	}

	for _, tt := range tests {
		subspec, err := braid.ParseSubspec(tt.subspec)
		if err != nil {
			t.Fatalf("Should be able to parse subspec %q: %s", tt.subspec, err)
		}

		if got := subspec.Satisfies(constraint); got != tt.want {
			t.Fatalf("Should report %v for %q against ~1.0: got %v", tt.want, tt.subspec, got)
		}
	}
}
