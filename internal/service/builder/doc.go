// Package builder invokes the external wheel build and constructs the
// authenticated source locator it fetches from.
//
// The credential read from the secret file is injected into the locator's
// userinfo section and aggressively redacted from logs and captured
// subprocess output. LFS smudging is disabled for the fetch so builds do
// not download large binary blobs.
package builder
