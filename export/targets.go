package export

import (
	"html"
	"sort"
	"strings"
)

// CaptureExpectation hints at what a raster target is expected to contain,
// which drives extra settle waits during capture.
type CaptureExpectation string

const (
	ExpectAnywidget CaptureExpectation = "anywidget"
	ExpectVega      CaptureExpectation = "vega"
)

// RasterTarget is a cell output eligible for PNG fallback capture.
type RasterTarget struct {
	CellID CellID
	// Expects lists the dynamic payloads detected in the output.
	Expects []CaptureExpectation
}

var componentMarkers = []string{
	"<marimo-",
	"&lt;marimo-",
}

var anywidgetMarkers = []string{
	"<marimo-anywidget",
	"&lt;marimo-anywidget",
}

var embeddedVegaMarkers = func() []string {
	markers := make([]string, 0, len(VegaMimeTypes))
	for mime := range VegaMimeTypes {
		markers = append(markers, mime)
	}
	sort.Strings(markers)
	return markers
}()

func containsMarker(data any, markers []string) bool {
	contains := func(value string) bool {
		for _, marker := range markers {
			if strings.Contains(value, marker) {
				return true
			}
		}
		return false
	}

	switch value := data.(type) {
	case string:
		return contains(value)
	case []string:
		for _, item := range value {
			if contains(item) {
				return true
			}
		}
	case []any:
		for _, item := range value {
			if text, ok := item.(string); ok && contains(text) {
				return true
			}
		}
	}
	return false
}

// shouldRasterizeOutput reports whether an output is eligible for PNG
// fallback capture.
func shouldRasterizeOutput(mimeType string, data any) bool {
	if VegaMimeTypes[mimeType] {
		return true
	}
	switch mimeType {
	case MimeTextHTML, MimeTextPlain, MimeTextMarkdown:
		return containsMarker(data, componentMarkers)
	}
	return false
}

func dedupeExpectations(values []CaptureExpectation) []CaptureExpectation {
	seen := make(map[CaptureExpectation]bool, len(values))
	deduped := make([]CaptureExpectation, 0, len(values))
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		deduped = append(deduped, value)
	}
	return deduped
}

func targetFromMimeBundle(id CellID, bundle map[string]any) *RasterTarget {
	shouldCapture := false
	var expects []CaptureExpectation

	mimes := make([]string, 0, len(bundle))
	for mime := range bundle {
		mimes = append(mimes, mime)
	}
	sort.Strings(mimes)

	for _, mime := range mimes {
		content := bundle[mime]
		if shouldRasterizeOutput(mime, content) {
			shouldCapture = true
		}
		if containsMarker(content, anywidgetMarkers) {
			expects = append(expects, ExpectAnywidget)
		}
		if VegaMimeTypes[mime] || containsMarker(content, embeddedVegaMarkers) {
			expects = append(expects, ExpectVega)
		}
	}

	if !shouldCapture {
		return nil
	}
	return &RasterTarget{
		CellID:  id,
		Expects: dedupeExpectations(expects),
	}
}

func targetFromOutput(id CellID, mimeType string, data any) *RasterTarget {
	if !shouldRasterizeOutput(mimeType, data) {
		return nil
	}

	var expects []CaptureExpectation
	if containsMarker(data, anywidgetMarkers) {
		expects = append(expects, ExpectAnywidget)
	}
	if VegaMimeTypes[mimeType] || containsMarker(data, embeddedVegaMarkers) {
		expects = append(expects, ExpectVega)
	}

	return &RasterTarget{
		CellID:  id,
		Expects: dedupeExpectations(expects),
	}
}

// CollectRasterTargets finds cell outputs eligible for PNG fallback capture.
// Targets come back in notebook order when the session knows it.
func CollectRasterTargets(view *SessionView) []RasterTarget {
	if view == nil {
		return nil
	}

	ids := make([]CellID, 0, len(view.Cells))
	for id := range view.Cells {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var targets []RasterTarget
	for _, id := range ids {
		notification := view.Cells[id]
		if notification == nil || notification.Output == nil || notification.Output.Data == nil {
			continue
		}
		output := notification.Output

		if output.MimeType == MimeBundle {
			bundle := loadMimeBundle(output.Data)
			if bundle == nil {
				continue
			}
			if target := targetFromMimeBundle(id, bundle); target != nil {
				targets = append(targets, *target)
			}
			continue
		}

		if target := targetFromOutput(id, output.MimeType, output.Data); target != nil {
			targets = append(targets, *target)
		}
	}

	return sortTargetsByNotebookOrder(view, targets)
}

// sortTargetsByNotebookOrder keeps capture sequencing deterministic. Cells
// missing from the known order sort last.
func sortTargetsByNotebookOrder(view *SessionView, targets []RasterTarget) []RasterTarget {
	if len(view.CellOrder) == 0 {
		return targets
	}

	order := make(map[CellID]int, len(view.CellOrder))
	for index, id := range view.CellOrder {
		order[id] = index
	}
	fallback := len(order)
	position := func(id CellID) int {
		if index, ok := order[id]; ok {
			return index
		}
		return fallback
	}

	sort.SliceStable(targets, func(i, j int) bool {
		return position(targets[i].CellID) < position(targets[j].CellID)
	})
	return targets
}

// PromoteComponentMarkup returns a copied session view where target outputs
// carrying escaped component markup are rewritten to unescaped text/html so
// static HTML export renders them.
func PromoteComponentMarkup(view *SessionView, targets []RasterTarget) *SessionView {
	capture := view.Clone()
	if capture == nil {
		return nil
	}

	for _, target := range targets {
		notification := capture.Cells[target.CellID]
		if notification == nil || notification.Output == nil {
			continue
		}
		output := notification.Output

		switch output.MimeType {
		case MimeTextHTML, MimeTextPlain, MimeTextMarkdown:
			promoteTextOutput(output)
		case MimeBundle:
			promoteMimeBundleOutput(output)
		}
	}
	return capture
}

func promoteTextOutput(output *CellOutput) {
	if !containsMarker(output.Data, componentMarkers) {
		return
	}
	output.MimeType = MimeTextHTML
	output.Data = unescapeComponentMarkup(output.Data)
}

// promoteMimeBundleOutput makes component markup inside a bundle available as
// unescaped text/html, preferring existing html over plain over markdown.
func promoteMimeBundleOutput(output *CellOutput) {
	bundle := loadMimeBundle(output.Data)
	if bundle == nil {
		return
	}

	for _, mime := range []string{MimeTextHTML, MimeTextPlain, MimeTextMarkdown} {
		data, ok := bundle[mime]
		if !ok || !containsMarker(data, componentMarkers) {
			continue
		}
		bundle[MimeTextHTML] = unescapeComponentMarkup(data)
		output.Data = bundle
		return
	}
}

func unescapeComponentMarkup(data any) any {
	switch value := data.(type) {
	case string:
		return html.UnescapeString(value)
	case []string:
		unescaped := make([]string, len(value))
		for i, item := range value {
			unescaped[i] = html.UnescapeString(item)
		}
		return unescaped
	case []any:
		unescaped := make([]any, len(value))
		for i, item := range value {
			if text, ok := item.(string); ok {
				unescaped[i] = html.UnescapeString(text)
			} else {
				unescaped[i] = item
			}
		}
		return unescaped
	default:
		return data
	}
}
