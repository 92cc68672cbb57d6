// Package fileutil provides small file-copy helpers shared by the
// staging and extraction stages.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// CopyFile copies src to dst with 0o644 permissions.
func CopyFile(src, dst string) error {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode copies src to dst, creating or truncating dst with mode.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	_, err := copyStream(src, dst, mode, nil)
	return err
}

// CopyFileVerified copies src to dst and confirms the copy by re-reading
// dst and comparing its size and SHA-256 digest against what was written.
// A mismatched copy is removed before the error is returned. Staged
// uploads go through this path; a silently truncated source would poison
// every later stage of the run.
func CopyFileVerified(src, dst string) error {
	srcSum := sha256.New()
	written, err := copyStream(src, dst, 0o644, srcSum)
	if err != nil {
		return err
	}

	dstDigest, dstSize, err := digestFile(dst)
	if err != nil {
		return err
	}
	if dstSize != written {
		_ = os.Remove(dst)
		return fmt.Errorf("verify copy %s: wrote %d bytes, destination holds %d", dst, written, dstSize)
	}
	if srcDigest := hex.EncodeToString(srcSum.Sum(nil)); srcDigest != dstDigest {
		_ = os.Remove(dst)
		return fmt.Errorf("verify copy %s: checksum mismatch", dst)
	}
	return nil
}

// copyStream streams src into dst, optionally feeding the bytes read
// through sum as they pass.
func copyStream(src, dst string, mode os.FileMode, sum hash.Hash) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}

	var reader io.Reader = in
	if sum != nil {
		reader = io.TeeReader(in, sum)
	}
	written, err := io.Copy(out, reader)
	if err != nil {
		_ = out.Close()
		return written, err
	}
	return written, out.Close()
}

func digestFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	sum := sha256.New()
	size, err := io.Copy(sum, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(sum.Sum(nil)), size, nil
}
