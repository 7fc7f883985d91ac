// Package paths implements canonical record path handling for the content
// tree: cleanup, alt qualification and the small set of pure helpers the
// rest of the editor derives links and identity from. Everything in here is
// deterministic and free of I/O.
package paths

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// PrimaryAlt marks the primary (unqualified) variant of a record. It is the
// process-wide "no alt" sentinel: paths qualified with it carry no suffix.
const PrimaryAlt = "_primary"

// Root is the canonical path of the content tree root.
const Root = "/"

// InvalidPathError reports a raw path that cannot be canonicalized. These are
// programmer errors: they are raised before any request is issued and are
// never surfaced to end users.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid record path %q: %s", e.Path, e.Reason)
}

// Canonicalize normalizes a raw slash-delimited path into its canonical form:
// a single leading slash, no repeated slashes, no "." segments and no trailing
// slash except for the root itself. ".." segments are resolved; one that would
// climb above the root is an error. The result is a fixed point: applying
// Canonicalize to its own output returns the output unchanged.
func Canonicalize(raw string) (string, error) {
	for _, r := range raw {
		switch {
		case r == '+':
			return "", &InvalidPathError{Path: raw, Reason: "'+' is reserved for alt qualifiers"}
		case r == ':':
			return "", &InvalidPathError{Path: raw, Reason: "':' is not allowed in record paths"}
		case r == '\\':
			return "", &InvalidPathError{Path: raw, Reason: "backslashes are not allowed in record paths"}
		case r < 0x20 || r == 0x7f:
			return "", &InvalidPathError{Path: raw, Reason: "control characters are not allowed in record paths"}
		}
	}

	segments := make([]string, 0, 8)
	for _, seg := range strings.Split(raw, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segments) == 0 {
				return "", &InvalidPathError{Path: raw, Reason: "path escapes the content root"}
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return Root, nil
	}
	return "/" + strings.Join(segments, "/"), nil
}

// WithAlt composes a canonical path and an alt qualifier into the single
// string used both as a display URL and as a request key. The primary alt
// leaves the path untouched.
func WithAlt(path, alt string) string {
	if alt == "" || alt == PrimaryAlt {
		return path
	}
	return path + "+" + alt
}

// SplitAlt is the exact inverse of WithAlt: it splits an alt-qualified path
// back into its path and alt parts. An unqualified path yields PrimaryAlt.
func SplitAlt(qualified string) (path, alt string) {
	if i := strings.IndexByte(qualified, '+'); i >= 0 {
		return qualified[:i], qualified[i+1:]
	}
	return qualified, PrimaryAlt
}

// Parent returns the canonical path of the containing record. The root is its
// own parent.
func Parent(path string) string {
	if i := strings.LastIndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	return Root
}

// ID returns the last path segment, which doubles as the record id. The root
// has the empty id.
func ID(path string) string {
	if path == Root {
		return ""
	}
	return path[strings.LastIndexByte(path, '/')+1:]
}

// IsChildOf reports whether path sits at or below ancestor in the tree.
func IsChildOf(path, ancestor string) bool {
	if ancestor == Root {
		return true
	}
	return path == ancestor || strings.HasPrefix(path, ancestor+"/")
}

// ToURLPath encodes a canonical, optionally alt-qualified record path into
// the colon-separated form used as the path parameter of admin navigation
// links. The root record encodes as "root"; a non-primary alt qualifier is
// carried through verbatim.
func ToURLPath(qualified string) string {
	path, alt := SplitAlt(qualified)
	parts := []string{"root"}
	if path != Root {
		parts = append(parts, strings.Split(strings.TrimPrefix(path, "/"), "/")...)
	}
	return WithAlt(strings.Join(parts, ":"), alt)
}

// FromURLPath decodes an admin link path parameter back into the
// alt-qualified record path. It is the exact inverse of ToURLPath for all
// valid inputs; anything not anchored at "root" is rejected.
func FromURLPath(urlPath string) (string, error) {
	trimmed, alt := SplitAlt(urlPath)
	parts := strings.Split(trimmed, ":")
	if len(parts) == 0 || parts[0] != "root" {
		return "", &InvalidPathError{Path: urlPath, Reason: `admin paths start with "root"`}
	}
	return WithAlt("/"+strings.Join(parts[1:], "/"), alt), nil
}

// GlobalID derives the stable global id of a path, the md5 hex digest the
// server publishes as the record's _gid system field.
func GlobalID(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// Slugify turns a human title into an id usable as a path segment: whitespace
// runs collapse to single dashes and the result is lowercased.
func Slugify(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(title)), "-"))
}
