package bio_test

import (
	"os"
	"testing"
)

func newTempFile(t *testing.T) (*os.File, error) {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "bio-*.tmp")
	if err != nil {
		return nil, err
	}

	t.Cleanup(func() { _ = os.Remove(f.Name()) })

	return f, nil
}
