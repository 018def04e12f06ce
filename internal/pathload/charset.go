package pathload

import (
	"mime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/keithlinneman/pathload/internal/xerrors"
)

// decode converts b from the named charset to a Go string. An empty label
// and any UTF-8 alias return the bytes unchanged.
func decode(b []byte, label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return string(b), nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", xerrors.Wrapf(err, "unsupported encoding %q", label)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return string(b), nil
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", xerrors.Wrapf(err, "decode %s", label)
	}
	return string(out), nil
}

// charsetOf returns the charset parameter of a Content-Type header value.
func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
