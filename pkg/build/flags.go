// SPDX-License-Identifier: MIT
//
// Package build exposes metadata embedded at link time:
//
//	go build -ldflags "-X tuner/pkg/build.buildName=tuner \
//	  -X tuner/pkg/build.buildVersion=0.1.0 \
//	  -X tuner/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X tuner/pkg/build.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Development builds without ldflags fall back to placeholder values.
package build

import "fmt"

const (
	defaultName        = "tuner"
	defaultDescription = "Real-time musical note detection from an audio input"
	unknown            = "unknown"
)

// Info is the build metadata of the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String formats the info for `--version` output.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = Info{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        unknown,
		Commit:      unknown,
		Version:     "dev",
	}
)

// Initialize copies the ldflags values into the build info. A release build
// must set all of them; setting only some is reported as an error so broken
// release scripts are caught. Setting none yields a development build.
func Initialize() error {
	set := 0
	for _, v := range []string{buildName, buildTime, buildCommit, buildVersion} {
		if v != "" {
			set++
		}
	}
	switch set {
	case 0:
		return nil
	case 4:
	default:
		return fmt.Errorf("incomplete build flags: name=%q time=%q commit=%q version=%q",
			buildName, buildTime, buildCommit, buildVersion)
	}

	buildInfo.Name = buildName
	buildInfo.Time = buildTime
	buildInfo.Commit = buildCommit
	buildInfo.Version = buildVersion
	return nil
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() Info {
	return buildInfo
}
