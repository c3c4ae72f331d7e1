package domain

import (
	"runtime"

	"go.trai.ch/zerr"
)

// Platform is a conda subdir such as "linux-64".
type Platform string

const (
	// PlatformLinux64 is x86_64 Linux.
	PlatformLinux64 Platform = "linux-64"
	// PlatformLinuxAarch64 is arm64 Linux.
	PlatformLinuxAarch64 Platform = "linux-aarch64"
	// PlatformOSX64 is x86_64 macOS.
	PlatformOSX64 Platform = "osx-64"
	// PlatformOSXArm64 is Apple silicon macOS.
	PlatformOSXArm64 Platform = "osx-arm64"
	// PlatformWin64 is x86_64 Windows.
	PlatformWin64 Platform = "win-64"
	// PlatformNoArch holds platform independent packages.
	PlatformNoArch Platform = "noarch"
)

var knownPlatforms = []Platform{
	PlatformLinux64, PlatformLinuxAarch64, PlatformOSX64, PlatformOSXArm64, PlatformWin64, PlatformNoArch,
}

// ParsePlatform validates a subdir string.
func ParsePlatform(s string) (Platform, error) {
	for _, p := range knownPlatforms {
		if string(p) == s {
			return p, nil
		}
	}
	return "", zerr.With(zerr.Wrap(ErrInvalidPlatform, "unknown subdir"), "platform", s)
}

// CurrentPlatform returns the platform of the running process.
func CurrentPlatform() Platform {
	switch runtime.GOOS + "/" + runtime.GOARCH {
	case "linux/arm64":
		return PlatformLinuxAarch64
	case "darwin/amd64":
		return PlatformOSX64
	case "darwin/arm64":
		return PlatformOSXArm64
	case "windows/amd64":
		return PlatformWin64
	default:
		return PlatformLinux64
	}
}

// OS returns the operating system family: "linux", "osx", "win" or "" for noarch.
func (p Platform) OS() string {
	switch p {
	case PlatformLinux64, PlatformLinuxAarch64:
		return "linux"
	case PlatformOSX64, PlatformOSXArm64:
		return "osx"
	case PlatformWin64:
		return "win"
	default:
		return ""
	}
}

// Arch returns the archspec name of the platform's CPU.
func (p Platform) Arch() string {
	switch p {
	case PlatformLinuxAarch64, PlatformOSXArm64:
		return "aarch64"
	case PlatformNoArch:
		return ""
	default:
		return "x86_64"
	}
}

// IsUnix reports whether the platform is Linux or macOS.
func (p Platform) IsUnix() bool {
	os := p.OS()
	return os == "linux" || os == "osx"
}

// String returns the subdir name.
func (p Platform) String() string {
	return string(p)
}
