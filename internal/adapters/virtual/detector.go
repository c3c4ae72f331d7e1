// Package virtual detects the virtual packages that describe the host system.
package virtual

import (
	"os"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/zerr"
)

// OverridePrefix starts the environment variables that replace a detected
// virtual package version. An empty value removes the package.
const OverridePrefix = "CONDA_OVERRIDE_"

var versionPrefix = regexp.MustCompile(`^\d+(\.\d+)*`)

// Host abstracts the probes of the running system.
type Host struct {
	GOOS      string
	LookupEnv func(key string) (string, bool)
	// Uname returns the kernel release and machine.
	Uname func() (release, machine string, err error)
	// Glibc returns the C library version, or "" when it is not glibc.
	Glibc func() string
	// MacOS returns the product version on macOS.
	MacOS func() string
}

// Detector implements ports.VirtualDetector.
type Detector struct {
	host Host
}

// New creates a Detector probing the running system.
func New() *Detector {
	return NewWithHost(Host{
		GOOS:      runtime.GOOS,
		LookupEnv: os.LookupEnv,
		Uname:     uname,
		Glibc:     glibcVersion,
		MacOS:     macOSVersion,
	})
}

// NewWithHost creates a Detector with custom probes (used for testing).
func NewWithHost(h Host) *Detector {
	return &Detector{host: h}
}

// Detect returns the virtual packages of platform, sorted by name. Probes run
// only when platform matches the host; otherwise only overrides and
// platform defaults apply.
func (d *Detector) Detect(platform domain.Platform) ([]domain.VirtualPackage, error) {
	native := platform.OS() == hostOS(d.host.GOOS)

	var release, machine string
	if native && d.host.Uname != nil {
		r, m, err := d.host.Uname()
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to probe host"), "platform", platform.String())
		}
		release, machine = r, m
	}

	var out []domain.VirtualPackage
	add := func(name, detected, build string) error {
		version, ok := d.override(name, detected)
		if !ok {
			return nil
		}
		v, err := domain.ParseVersion(version)
		if err != nil {
			err := zerr.With(zerr.Wrap(err, "invalid virtual package version"), "package", name)
			return zerr.With(err, "version", version)
		}
		out = append(out, domain.VirtualPackage{Name: domain.NewPackageName(name), Version: v, Build: build})
		return nil
	}

	var err error
	switch platform.OS() {
	case "linux":
		err = firstErr(
			add("__unix", "0", ""),
			add("__linux", orDefault(versionPrefix.FindString(release), "0"), ""),
			add("__glibc", d.probe(native, d.host.Glibc), ""),
		)
	case "osx":
		err = firstErr(
			add("__unix", "0", ""),
			add("__osx", d.probe(native, d.host.MacOS), ""),
		)
	case "win":
		err = add("__win", "0", "")
	}
	if err != nil {
		return nil, err
	}

	arch := platform.Arch()
	if native && machine != "" {
		arch = normalizeMachine(machine)
	}
	if arch != "" {
		if err := add("__archspec", "1", arch); err != nil {
			return nil, err
		}
	}
	if err := add("__cuda", "", ""); err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b domain.VirtualPackage) int {
		return a.Name.Compare(b.Name)
	})
	return out, nil
}

// override applies CONDA_OVERRIDE_<NAME>. ok is false when the package is
// disabled or neither detected nor overridden.
func (d *Detector) override(name, detected string) (string, bool) {
	if d.host.LookupEnv != nil {
		key := OverridePrefix + strings.ToUpper(strings.TrimPrefix(name, "__"))
		if v, set := d.host.LookupEnv(key); set {
			v = strings.TrimSpace(v)
			return v, v != ""
		}
	}
	return detected, detected != ""
}

func (d *Detector) probe(native bool, f func() string) string {
	if !native || f == nil {
		return ""
	}
	return versionPrefix.FindString(f())
}

func hostOS(goos string) string {
	switch goos {
	case "darwin":
		return "osx"
	case "windows":
		return "win"
	default:
		return goos
	}
}

func normalizeMachine(m string) string {
	switch m {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	default:
		return m
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
