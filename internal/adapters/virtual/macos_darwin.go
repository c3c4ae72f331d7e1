//go:build darwin

package virtual

import "golang.org/x/sys/unix"

func macOSVersion() string {
	v, err := unix.Sysctl("kern.osproductversion")
	if err != nil {
		return ""
	}
	return v
}
