package pathload

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// ErrUnsupportedEnvironment is returned by the filesystem loader of builds
// that have no filesystem (js/wasm, wasip1).
var ErrUnsupportedEnvironment = errors.New("filesystem access is not supported in this environment")

// ErrContentNotDelivered is returned when a ProcessContent hook returned
// without error but never called done before the context ended.
var ErrContentNotDelivered = errors.New("processContent returned without calling done")

// FileError is a failed filesystem read. Its message has the form
//
//	ENOENT: no such file or directory, open '/abs/path'
//
// so callers can match on either the code or the path.
type FileError struct {
	Code string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s, open '%s'", e.Code, describe(e.Err), e.Path)
}

func (e *FileError) Unwrap() error { return e.Err }

func newFileError(path string, err error) *FileError {
	return &FileError{Code: errCode(err), Path: path, Err: err}
}

// describe strips the operation and path that *fs.PathError adds, since
// FileError prints the path itself.
func describe(err error) string {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return err.Error()
}

func errCode(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "ENOENT"
	case errors.Is(err, fs.ErrPermission):
		return "EACCES"
	case errors.Is(err, syscall.EISDIR):
		return "EISDIR"
	case errors.Is(err, syscall.ENOTDIR):
		return "ENOTDIR"
	default:
		return "EIO"
	}
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %s", e.Method, e.URL, e.Status)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not
// (and does not wrap) a *StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// HookError is a failure raised by a caller-supplied hook. Its message is the
// hook's message unchanged.
type HookError struct {
	Hook string
	Err  error
}

func (e *HookError) Error() string { return e.Err.Error() }
func (e *HookError) Unwrap() error { return e.Err }

const (
	hookPrepareRequest = "prepareRequest"
	hookProcessContent = "processContent"
)

// callHook runs fn and converts a returned error or a panic into a *HookError.
func callHook(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(error)
			if !ok {
				perr = fmt.Errorf("%v", r)
			}
			err = &HookError{Hook: name, Err: perr}
		}
	}()
	if herr := fn(); herr != nil {
		return &HookError{Hook: name, Err: herr}
	}
	return nil
}
