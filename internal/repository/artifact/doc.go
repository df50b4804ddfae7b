// Package artifact provides an explicit directory-listing abstraction over
// the build directory. The original workflow discovered artifacts through
// shell globbing, which left the duplicate tie-break to whatever order the
// shell produced; Store pins the listing to ascending name order so pruning
// is reproducible and testable.
package artifact
