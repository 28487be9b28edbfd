package msignode

import "fmt"

// Maj is the major version number (updated on breaking release)
const Maj = 1

// Min is the minor version number (updated on minor releases)
const Min = 1

// Fix is the patch number (updated on bugfix releases)
const Fix = 0

// Suffix used when not a tagged release (eg. -dev, -alpha, -beta, etc)
const Suffix = ""

// version is private to avoid modifications
var version = fmt.Sprintf("%d.%d.%d%s", Maj, Min, Fix, Suffix)

// GitCommit set by build flags
var GitCommit = ""

// Version is the protocol version this node announces to its peers.
func Version() string {
	return version
}

// BuildVersion is the string to be displayed
func BuildVersion() string {
	v := "v" + version
	if GitCommit != "" {
		v += " " + GitCommit
	}
	return v
}
