//go:build !unix

package virtual

func uname() (string, string, error) {
	return "", "", nil
}
