// Package digest computes SHA-1 and MD5 digests over published files and
// writes them to sibling checksum files (spec §4.9): lowercase hex, no
// trailing newline, no filename prefix.
//
// There is no ecosystem hashing library in the example pack's dependency
// surface that supersedes the standard library here — every pack repo that
// needs a digest reaches for crypto/sha1 or crypto/md5 directly, so this
// package does too.
package digest

import (
	"crypto/md5"  //nolint:gosec // MD5 is a required legacy checksum format (spec §4.9), not a security boundary
	"crypto/sha1" //nolint:gosec // SHA-1 is the artifact repository's conventional digest, not a security boundary
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
)

// WriteSiblings computes SHA-1 and MD5 of the file at path and writes them
// to path+".sha1" and path+".md5", each atomically (temp-file + rename).
func WriteSiblings(path string) error {
	sha1Sum, md5Sum, err := SumFile(path)
	if err != nil {
		return err
	}
	if err := writeAtomic(path+".sha1", sha1Sum); err != nil {
		return err
	}
	return writeAtomic(path+".md5", md5Sum)
}

// SumFile streams path once through both SHA-1 and MD5, returning lowercase
// hex digests.
func SumFile(path string) (sha1Hex, md5Hex string, err error) {
	f, err := os.Open(path) //nolint:gosec // path is a file this process just published
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	h1 := sha1.New() //nolint:gosec // see package comment
	h2 := md5.New()  //nolint:gosec // see package comment
	w := io.MultiWriter(h1, h2)
	if _, err := io.Copy(w, f); err != nil {
		return "", "", fmt.Errorf("digest: hash %s: %w", path, err)
	}
	return hexOf(h1), hexOf(h2), nil
}

func hexOf(h hash.Hash) string {
	return fmt.Sprintf("%x", h.Sum(nil))
}

func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "digest-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := io.WriteString(tmp, content); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
