// Package build holds values stamped in at link time, eg
//
//	go build -ldflags "-X github.com/drummonds/pdfmerge/internal/build.Version=v1.2.0"
package build

// Version of the binary, "dev" for unstamped builds
var Version = "dev"
