package export

// Mime types observed in cell outputs.
const (
	MimeTextHTML     = "text/html"
	MimeTextPlain    = "text/plain"
	MimeTextMarkdown = "text/markdown"
	MimePNG          = "image/png"
	MimeBundle       = "application/vnd.marimo+mimebundle"
)

// VegaMimeTypes are vega/vega-lite payload mime types.
var VegaMimeTypes = map[string]bool{
	"application/vnd.vegalite.v5+json": true,
	"application/vnd.vega.v5+json":     true,
	"application/vnd.vegalite.v6+json": true,
	"application/vnd.vega.v6+json":     true,
}

// MimeTypesReplacedByPNG lists mime types dropped from an output once a PNG
// fallback has been captured for it.
var MimeTypesReplacedByPNG = []string{
	MimeTextHTML,
	MimeTextPlain,
	MimeTextMarkdown,
	"application/vnd.vegalite.v5+json",
	"application/vnd.vega.v5+json",
	"application/vnd.vegalite.v6+json",
	"application/vnd.vega.v6+json",
}
