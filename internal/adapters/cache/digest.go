package cache

import (
	"crypto/md5" //nolint:gosec // md5 is only a content address for legacy records
	_ "crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/zerr"
)

const algMD5 = "md5"

// splitKey returns the algorithm and hex part of a content key.
func splitKey(key string) (alg, hexPart string) {
	alg, hexPart, _ = strings.Cut(key, ":")
	return alg, hexPart
}

// fileDigest hashes the file at path with the algorithm of key and returns
// the result in key form.
func fileDigest(key, path string) (string, error) {
	//nolint:gosec // Path is below the cache directory
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	alg, _ := splitKey(key)
	if alg == algMD5 {
		h := md5.New() //nolint:gosec // see import
		if _, err := io.Copy(h, f); err != nil {
			return "", err
		}
		return algMD5 + ":" + hex.EncodeToString(h.Sum(nil)), nil
	}

	algorithm := digest.Algorithm(alg)
	if !algorithm.Available() {
		return "", zerr.With(zerr.Wrap(domain.ErrMissingHash, "unsupported digest algorithm"), "key", key)
	}
	d, err := algorithm.FromReader(f)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// verifyFile reports whether the file at path matches key. sha256 keys go
// through the go-digest verifier.
func verifyFile(key, path string) (bool, string, error) {
	alg, _ := splitKey(key)
	if alg == algMD5 {
		actual, err := fileDigest(key, path)
		if err != nil {
			return false, "", err
		}
		return actual == key, actual, nil
	}

	d, err := digest.Parse(key)
	if err != nil {
		return false, "", zerr.With(zerr.Wrap(domain.ErrMissingHash, "invalid content key"), "key", key)
	}

	//nolint:gosec // Path is below the cache directory
	f, err := os.Open(path)
	if err != nil {
		return false, "", err
	}
	defer func() { _ = f.Close() }()

	verifier := d.Verifier()
	if _, err := io.Copy(verifier, f); err != nil {
		return false, "", err
	}
	if verifier.Verified() {
		return true, key, nil
	}

	actual, err := fileDigest(key, path)
	if err != nil {
		return false, "", err
	}
	return false, actual, nil
}
