//go:build js || wasip1

package pathload

import "context"

type unsupportedFiles struct{}

func (unsupportedFiles) ReadFile(context.Context, string) ([]byte, error) {
	return nil, ErrUnsupportedEnvironment
}

// OSFiles returns a backend that fails every read. js/wasm and wasip1 builds
// have no host filesystem to read from.
func OSFiles() FileLoader { return unsupportedFiles{} }
