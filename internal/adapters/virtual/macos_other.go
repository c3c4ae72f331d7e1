//go:build !darwin

package virtual

func macOSVersion() string {
	return ""
}
