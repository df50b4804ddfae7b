// Package packager orchestrates a release of the dcmtrans library.
//
// One run executes five steps in strict sequence: prepare the output and
// build directories, purge stale artifacts, invoke the external wheel
// build, prune duplicate outputs by name prefix, and zip the survivors
// into the release archive. Every step is fatal on failure; nothing is
// retried. A marker file plus a process scan refuse concurrent runs
// against the same build directory.
package packager
