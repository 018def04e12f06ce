//go:build !js && !wasip1

package pathload

import (
	"context"
	"os"
)

type osFiles struct{}

func (osFiles) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// OSFiles returns the local filesystem backend.
func OSFiles() FileLoader { return osFiles{} }
