package export

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
)

const notebookHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ title }}</title>
{% if asset_url %}<base href="{{ asset_url }}/">{% endif %}
{% for file in files %}<link rel="preload" href="{{ file }}" as="fetch">
{% endfor %}</head>
<body>
<div id="root">
<div class="notebook">
{% for cell in cells %}<div class="cell" data-cell-id="{{ cell.id }}">
{% if include_code and cell.code %}<pre class="code">{{ cell.code }}</pre>
{% endif %}<div id="output-{{ cell.id }}"><div class="output">{{ cell.output|safe }}</div></div>
</div>
{% endfor %}</div>
</div>
</body>
</html>
`

// HTMLRenderer renders session views into standalone HTML pages whose
// output containers match the raster capture locator.
type HTMLRenderer struct {
	Title string
	Now   func() time.Time

	tmpl *pongo2.Template
}

// NewHTMLRenderer creates an HTMLRenderer with the embedded page template.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	tmpl, err := pongo2.FromString(notebookHTMLTemplate)
	if err != nil {
		return nil, NewError(KindInternal, "notebook html template parse failed", err)
	}
	return &HTMLRenderer{Now: time.Now, tmpl: tmpl}, nil
}

// ExportAsHTML renders the session view. It returns the page HTML and the
// suggested download filename.
func (r *HTMLRenderer) ExportAsHTML(view *SessionView, filename string, req ExportAsHTMLRequest) (string, string, error) {
	if r == nil || r.tmpl == nil {
		return "", "", NewError(KindInternal, "html renderer is not initialized", nil)
	}

	title := r.Title
	if title == "" {
		title = strings.TrimSuffix(filename, ".py")
	}
	if title == "" {
		title = "notebook"
	}

	cells := make([]pongo2.Context, 0)
	if view != nil {
		for _, id := range orderedCellIDs(view) {
			notification := view.Cells[id]
			if notification == nil || notification.Output == nil {
				continue
			}
			cells = append(cells, pongo2.Context{
				"id":     string(id),
				"code":   notification.Code,
				"output": renderOutputHTML(notification.Output),
			})
		}
	}

	assetURL := strings.TrimSuffix(req.AssetURL, "/")
	page, err := r.tmpl.Execute(pongo2.Context{
		"title":        title,
		"asset_url":    assetURL,
		"files":        req.Files,
		"include_code": req.IncludeCode,
		"cells":        cells,
	})
	if err != nil {
		return "", "", NewError(KindInternal, "notebook html render failed", err)
	}

	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	downloadName, err := RenderDownloadFilename(filename, "", DownloadHTML, "", now)
	if err != nil {
		return "", "", err
	}
	return page, downloadName, nil
}

func orderedCellIDs(view *SessionView) []CellID {
	seen := make(map[CellID]bool, len(view.Cells))
	ids := make([]CellID, 0, len(view.Cells))
	for _, id := range view.CellOrder {
		if _, ok := view.Cells[id]; ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	rest := make([]CellID, 0, len(view.Cells))
	for id := range view.Cells {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(ids, rest...)
}

// renderOutputHTML turns a cell output into an HTML snippet. HTML payloads
// pass through untouched; everything else is escaped or embedded as data.
func renderOutputHTML(output *CellOutput) string {
	if output == nil || output.Data == nil {
		return ""
	}

	if output.MimeType == MimeBundle {
		bundle := loadMimeBundle(output.Data)
		if bundle == nil {
			return ""
		}
		if htmlData, ok := bundle[MimeTextHTML]; ok {
			return stringifyOutputData(htmlData)
		}
		for _, mime := range sortedBundleMimes(bundle) {
			if VegaMimeTypes[mime] {
				return renderVegaEmbed(bundle[mime])
			}
		}
		if plain, ok := bundle[MimeTextPlain]; ok {
			return "<pre>" + html.EscapeString(stringifyOutputData(plain)) + "</pre>"
		}
		return ""
	}

	if VegaMimeTypes[output.MimeType] {
		return renderVegaEmbed(output.Data)
	}

	switch output.MimeType {
	case MimeTextHTML:
		return stringifyOutputData(output.Data)
	case MimeTextPlain, MimeTextMarkdown:
		return "<pre>" + html.EscapeString(stringifyOutputData(output.Data)) + "</pre>"
	case MimePNG:
		payload := stringifyOutputData(output.Data)
		if !strings.HasPrefix(payload, "data:") {
			payload = PNGDataURLPrefix + payload
		}
		return `<img src="` + payload + `">`
	default:
		return "<pre>" + html.EscapeString(stringifyOutputData(output.Data)) + "</pre>"
	}
}

func renderVegaEmbed(spec any) string {
	raw, err := json.Marshal(spec)
	if err != nil {
		return ""
	}
	return `<div class="vega-embed" data-spec="` + html.EscapeString(string(raw)) + `"></div>`
}

func sortedBundleMimes(bundle map[string]any) []string {
	mimes := make([]string, 0, len(bundle))
	for mime := range bundle {
		mimes = append(mimes, mime)
	}
	sort.Strings(mimes)
	return mimes
}

func stringifyOutputData(data any) string {
	switch value := data.(type) {
	case string:
		return value
	case []string:
		return strings.Join(value, "")
	case []any:
		var builder strings.Builder
		for _, item := range value {
			if text, ok := item.(string); ok {
				builder.WriteString(text)
			}
		}
		return builder.String()
	default:
		return fmt.Sprint(value)
	}
}
