package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestVersion_CanBeOverridden(t *testing.T) {
	origVersion := Version
	origGitCommit := GitCommit
	defer func() {
		Version = origVersion
		GitCommit = origGitCommit
	}()

	Version = "1.2.3"
	GitCommit = "abc123def456"
	if Version != "1.2.3" {
		t.Errorf("Version = %q, want %q", Version, "1.2.3")
	}
	if GitCommit != "abc123def456" {
		t.Errorf("GitCommit = %q, want %q", GitCommit, "abc123def456")
	}
}

func TestColored(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	cases := []string{"0.1.0-dev", "1.2.3", "1.0.0-rc.1", "dev", "1.2"}
	for _, v := range cases {
		if got := Colored(v); got != v {
			t.Errorf("Colored(%q) = %q without color", v, got)
		}
	}
}

func TestColoredHighlightsParts(t *testing.T) {
	orig := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = orig }()

	if got := Colored("1.2.3"); got == "1.2.3" {
		t.Errorf("Colored(1.2.3) was not highlighted")
	}
	if got := Colored("dev"); got != "dev" {
		t.Errorf("Colored(dev) = %q", got)
	}
}
