// Package pathload resolves a target string into its textual content.
//
// A target is a local filesystem path (absolute, or relative to the loader's
// base directory), a file:// URL, or an http(s):// URL. When the loader is
// configured with AWS clients it also understands s3://bucket/key and
// ssm://parameter-name. Every target goes through the same entry points:
//
//   - [Loader.Load]: blocks and returns the text or an error
//   - [Loader.LoadAsync]: returns a [Future] immediately
//
// Both accept [WithCallback], which is invoked exactly once with the same
// outcome the caller observes.
//
// The filesystem backend is chosen at compile time. Builds for js/wasm and
// wasip1 get a
// backend that fails every read with [ErrUnsupportedEnvironment].
//
// No caching, retries or deduplication happen here: each call is one file read
// or one HTTP round trip, and a failure is final for that call.
package pathload
