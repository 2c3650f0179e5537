// Package pdfchrome renders notebook PDFs locally with headless Chromium.
// It implements the download capability without a rendering backend: the
// session is exported to standalone HTML and printed via the DevTools
// protocol.
package pdfchrome
