// Package version identifies the SDK build for the User-Agent header and
// diagnostics.
//
// Version can be overridden at build time:
//
//	go build -ldflags "-X github.com/georgeglarson/venice-go/version.Version=1.2.0"
package version

import "runtime/debug"

// Version is the SDK release version. Set at build time via -ldflags;
// falls back to module build info when left at "dev".
var Version = "dev"

// UserAgent returns the User-Agent value sent with every request.
func UserAgent() string {
	return "venice-go/" + resolve()
}

func resolve() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}
