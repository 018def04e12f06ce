package pathload

import (
	"net/url"
	"runtime"
	"strings"
)

// Kind is the backend a target is routed to.
type Kind int

const (
	KindFile Kind = iota
	KindHTTP
	KindS3
	KindSSM
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindHTTP:
		return "http"
	case KindS3:
		return "s3"
	case KindSSM:
		return "ssm"
	default:
		return "unknown"
	}
}

// Target is a classified load target. Location is the filesystem path (not
// yet resolved), the URL, the bucket/key pair, or the parameter name.
type Target struct {
	Raw      string
	Kind     Kind
	Location string
}

// Classify routes target to the file or http backend. Schemes are matched
// case-insensitively and file:// URLs are turned into paths.
func Classify(target string) Target {
	switch {
	case hasScheme(target, "http"), hasScheme(target, "https"):
		return Target{Raw: target, Kind: KindHTTP, Location: target}
	case hasScheme(target, "file"):
		return Target{Raw: target, Kind: KindFile, Location: fileURLPath(target)}
	default:
		return Target{Raw: target, Kind: KindFile, Location: target}
	}
}

// classify extends Classify with the object-store schemes this loader has
// clients for. Without a client those targets stay filesystem paths.
func (l *Loader) classify(target string) Target {
	switch {
	case l.s3 != nil && hasScheme(target, "s3"):
		return Target{Raw: target, Kind: KindS3, Location: target[len("s3://"):]}
	case l.ssm != nil && hasScheme(target, "ssm"):
		return Target{Raw: target, Kind: KindSSM, Location: target[len("ssm://"):]}
	}
	return Classify(target)
}

func hasScheme(s, scheme string) bool {
	n := len(scheme) + len("://")
	return len(s) >= n && strings.EqualFold(s[:len(scheme)], scheme) && s[len(scheme):n] == "://"
}

// fileURLPath strips the scheme and an optional localhost authority, and
// percent-decodes what remains. file://./a.json yields the relative ./a.json.
func fileURLPath(u string) string {
	p := u[len("file://"):]
	if dec, err := url.PathUnescape(p); err == nil {
		p = dec
	}
	const host = "localhost/"
	if len(p) >= len(host) && strings.EqualFold(p[:len(host)], host) {
		p = p[len(host)-1:]
	}
	// file:///C:/x is C:/x on windows
	if runtime.GOOS == "windows" && len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return p
}

// display returns the target in a form that is safe to log.
func (t Target) display() string {
	if t.Kind != KindHTTP {
		return t.Raw
	}
	u, err := url.Parse(t.Raw)
	if err != nil {
		return t.Raw
	}
	return u.Redacted()
}
