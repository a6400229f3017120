package platform

import (
	"os"

	"github.com/subosito/gotenv"
)

const osReleasePath = "/etc/os-release"

// linuxOSVersion reads VERSION_ID from an os-release file.
// Missing or unreadable files yield an empty version.
func linuxOSVersion(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	values, err := gotenv.StrictParse(f)
	if err != nil {
		return ""
	}
	return values["VERSION_ID"]
}
