package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the released version. Override at build time:
//
//	go build -ldflags "-X github.com/hrygo/orchestra/internal/version.Version=0.3.0"
var Version = "0.0.0-dev"

// GitCommit is the git commit hash at build time.
var GitCommit = "unknown"

// BuildTime is the build timestamp in RFC3339 format.
var BuildTime = "unknown"

// IsDev reports whether Version is a development build.
func IsDev() bool {
	return semver.Prerelease(canonical(Version)) == "-dev"
}

// IsVersionGreaterOrEqualThan returns true if version is greater than or equal to target.
func IsVersionGreaterOrEqualThan(version, target string) bool {
	return semver.Compare(canonical(version), canonical(target)) > -1
}

// Satisfies reports whether the running build meets min. Development builds
// and an empty min always satisfy.
func Satisfies(min string) (bool, error) {
	if strings.TrimSpace(min) == "" {
		return true, nil
	}
	if !semver.IsValid(canonical(min)) {
		return false, fmt.Errorf("invalid version %q", min)
	}
	if IsDev() {
		return true, nil
	}
	return IsVersionGreaterOrEqualThan(Version, min), nil
}

// String returns the version string with optional commit hash.
func String() string {
	v := Version
	if c := shortCommit(); c != "" {
		v = fmt.Sprintf("%s-%s", v, c)
	}
	return v
}

// StringFull returns the complete version information including build metadata.
func StringFull() string {
	parts := []string{fmt.Sprintf("Version=%s", Version)}
	if c := shortCommit(); c != "" {
		parts = append(parts, fmt.Sprintf("Commit=%s", c))
	}
	if BuildTime != "" && BuildTime != "unknown" {
		parts = append(parts, fmt.Sprintf("BuildTime=%s", BuildTime))
	}
	return strings.Join(parts, " ")
}

func shortCommit() string {
	if GitCommit == "" || GitCommit == "unknown" {
		return ""
	}
	if len(GitCommit) > 8 {
		return GitCommit[:8]
	}
	return GitCommit
}

func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
