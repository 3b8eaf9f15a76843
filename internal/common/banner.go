package common

import (
	"fmt"

	"github.com/ternarybob/banner"
)

// PrintBanner shows the startup banner with version and build stamp
func PrintBanner(version string) {
	if build := GetBuild(); build != "unknown" {
		version = fmt.Sprintf("%s (%s)", version, build)
	}
	banner.PrintSimple("Jobhound", version)
}
