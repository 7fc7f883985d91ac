package client

import "fmt"

// NotFoundError reports that the server has no resolvable node or record at
// the requested path. Addressable-but-uncreated paths are not errors; they
// come back as regular responses with exists=false.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record path %q not found", e.Path)
}

// RequestError reports a transport-level failure: connection problems,
// timeouts, cancellations and non-404 HTTP errors.
type RequestError struct {
	Op  string
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
