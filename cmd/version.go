package cmd

import "fmt"

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// runVersion displays version information.
func runVersion() {
	fmt.Print(versionString())
}

// versionString formats the build information block.
func versionString() string {
	return fmt.Sprintf("ragchat v%s\nBuild: %s\nCommit: %s\n",
		AppVersion, BuildTime, GitCommit)
}
