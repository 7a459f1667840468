package version

import (
	"fmt"
	"strings"
	"sync"
)

// validCharacters is a list of characters valid in the appBuild string
const validCharacters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0
)

// appBuild is defined as a variable so it can be overridden during the build
// process with '-ldflags "-X github.com/kaspanet/chaincore/version.appBuild=foo"' if needed.
// It MUST only contain characters from validCharacters.
var appBuild string

var (
	version     string
	versionOnce sync.Once
)

// Version returns the application version as a properly formed string
func Version() string {
	versionOnce.Do(func() {
		version = formatVersion(appBuild)
	})
	return version
}

// formatVersion appends build to the semantic version unless build contains
// characters outside of validCharacters.
func formatVersion(build string) string {
	semantic := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if build == "" || strings.Trim(build, validCharacters) != "" {
		return semantic
	}
	return fmt.Sprintf("%s-%s", semantic, build)
}
