// SPDX-License-Identifier: MIT
package build

import "testing"

// reset restores the ldflags variables and defaults after a test changes them.
func reset(t *testing.T) {
	t.Helper()
	name, tm, commit, version := buildName, buildTime, buildCommit, buildVersion
	flags := *buildFlags
	t.Cleanup(func() {
		buildName, buildTime, buildCommit, buildVersion = name, tm, commit, version
		*buildFlags = flags
	})
}

func TestDefaults(t *testing.T) {
	flags := GetBuildFlags()
	if flags.Name != "sampler" {
		t.Errorf("Name = %q, want sampler", flags.Name)
	}
	if flags.Description != Description || Description == "" {
		t.Errorf("Description = %q, want %q", flags.Description, Description)
	}
	if flags.Version != "unknown" {
		t.Errorf("Version = %q, want unknown in development builds", flags.Version)
	}
}

func TestInitializeWithoutLdflagsKeepsDefaults(t *testing.T) {
	reset(t)
	buildName, buildTime, buildCommit, buildVersion = "", "", "", ""

	if err := Initialize(); err == nil || err.Error() != "BuildName is required" {
		t.Fatalf("Initialize() = %v, want BuildName is required", err)
	}
	if flags := GetBuildFlags(); flags.Name != "sampler" || flags.Description != Description {
		t.Errorf("failed Initialize changed defaults: %+v", *flags)
	}
}

func TestInitializeCopiesLdflags(t *testing.T) {
	reset(t)
	buildName, buildTime, buildCommit, buildVersion = "sampler", "2026-10-15", "abc123", "0.1.0"

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() = %v", err)
	}
	want := ldFlags{
		Name:        "sampler",
		Description: Description,
		Time:        "2026-10-15",
		Commit:      "abc123",
		Version:     "0.1.0",
	}
	if got := *GetBuildFlags(); got != want {
		t.Errorf("GetBuildFlags() = %+v, want %+v", got, want)
	}
}
