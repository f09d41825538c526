package version

import (
	"runtime"
)

const DevVersionValue = "dev"

// Values are set by the "-ldflags -X" build flags.
var (
	BuildVersion = DevVersionValue // nolint: gochecknoglobals
	GitCommit    = "-"             // nolint: gochecknoglobals
	BuildDate    = "-"             // nolint: gochecknoglobals
)

// Version for --version flag.
func Version() string {
	return "Version:    " + BuildVersion + "\n" +
		"Git commit: " + GitCommit + "\n" +
		"Build date: " + BuildDate + "\n" +
		"Go version: " + runtime.Version() + "\n" +
		"Os/Arch:    " + runtime.GOOS + "/" + runtime.GOARCH + "\n"
}
