// Package version holds build information set through -ldflags.
package version

import "fmt"

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
}

func Info() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
	}
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("%s (%s, built %s)", v.Version, v.GitCommit, v.BuildTime)
}
