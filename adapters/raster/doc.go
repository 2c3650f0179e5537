// Package rasterchrome captures PNG fallbacks of notebook outputs using a
// shared headless Chromium instance.
//
// The engine navigates to an exported or live notebook page, waits for the
// frontend to hydrate, and screenshots each target output element. Capture
// failures for individual targets are logged and skipped; they never abort
// the capture pass.
package rasterchrome
