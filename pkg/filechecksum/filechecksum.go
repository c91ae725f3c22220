package filechecksum

import (
	"bytes"
	"crypto/sha256"
	"io"
	"os"

	"github.com/pkg/errors"
)

func Calculate(data []byte) []byte {
	sum, _ := CalculateReader(bytes.NewReader(data))
	return sum
}

func CalculateReader(r io.Reader) ([]byte, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return nil, errors.Wrap(err, "failed to hash data")
	}
	return hasher.Sum(nil), nil
}

// CalculateFile hashes the file at path without loading it into memory.
func CalculateFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer f.Close()
	return CalculateReader(f)
}
