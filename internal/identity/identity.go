// Package identity reports who this daemon is on the network: its host,
// build version and mDNS instance name.
package identity

import (
	"os"
	"runtime/debug"
)

// DefaultVersion is reported when the binary carries no version.
const DefaultVersion = "devel"

// Version may be set at link time with -ldflags "-X ...identity.Version=v1.2.3".
var Version = ""

// Info holds system identity information.
type Info struct {
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
	Instance string `json:"instance"`
}

// GetHostname returns the system hostname.
func GetHostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "upm6720d"
	}
	return h
}

// GetVersion returns the link-time version, then the module version from
// the build info, then DefaultVersion.
func GetVersion() string {
	if Version != "" {
		return Version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return DefaultVersion
}

// InstanceName is the mDNS instance name for a device with the given
// supply name on host.
func InstanceName(supply, host string) string {
	return supply + "@" + host
}

// Get collects the identity of the daemon serving supply.
func Get(supply string) Info {
	host := GetHostname()
	return Info{
		Hostname: host,
		Version:  GetVersion(),
		Instance: InstanceName(supply, host),
	}
}
