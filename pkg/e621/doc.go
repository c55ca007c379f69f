// Package e621 is a client for the legacy e621 JSON API.
//
// It covers the endpoints the downloader needs:
//   - post index with before_id paging
//   - single post lookup, used to resume partial downloads
//   - exact tag lookup, alias lookup and tag by id, used to resolve tags
//   - ranged file fetches
//   - the latest release of the tool itself
//
// All traffic goes through the transport returned by NewTransport, which
// spaces requests to the service's published limit and retries transient
// failures. Errors are *errors.Error values from e621dl/pkg/errors wrapped
// with the operation that failed.
package e621
