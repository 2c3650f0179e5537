package export

import "strings"

// Notebook is a minimal ipynb document model, enough to inject output
// fallbacks into code cells.
type Notebook struct {
	Cells         []*NotebookCell `json:"cells"`
	Metadata      map[string]any  `json:"metadata"`
	NBFormat      int             `json:"nbformat"`
	NBFormatMinor int             `json:"nbformat_minor"`
}

// NotebookCell is a single ipynb cell.
type NotebookCell struct {
	CellType string            `json:"cell_type"`
	ID       string            `json:"id,omitempty"`
	Source   []string          `json:"source"`
	Metadata map[string]any    `json:"metadata"`
	Outputs  []*NotebookOutput `json:"outputs,omitempty"`
}

// NotebookOutput is an ipynb cell output.
type NotebookOutput struct {
	OutputType string         `json:"output_type"`
	Data       map[string]any `json:"data,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Text       []string       `json:"text,omitempty"`
}

// pngPayload strips the data URL wrapper from captured fallbacks. Raw base64
// payloads pass through; non-PNG data URLs are rejected.
func pngPayload(dataURLOrPayload string) (string, bool) {
	if strings.HasPrefix(dataURLOrPayload, PNGDataURLPrefix) {
		return strings.TrimPrefix(dataURLOrPayload, PNGDataURLPrefix), true
	}
	if strings.HasPrefix(dataURLOrPayload, "data:") {
		return "", false
	}
	return dataURLOrPayload, true
}

func isDisplayOutput(output *NotebookOutput) bool {
	if output == nil {
		return false
	}
	return output.OutputType == "display_data" || output.OutputType == "execute_result"
}

// InjectPNGFallbacks replaces rasterized mime payloads on matching code
// cells with captured image/png fallbacks. Cells without a display output
// get one appended. Returns the number of cells updated.
func InjectPNGFallbacks(notebook *Notebook, fallbacks map[CellID]string) int {
	if notebook == nil || len(fallbacks) == 0 {
		return 0
	}

	injected := 0
	for _, cell := range notebook.Cells {
		if cell == nil || cell.CellType != "code" || cell.ID == "" {
			continue
		}

		dataURL, ok := fallbacks[CellID(cell.ID)]
		if !ok || dataURL == "" {
			continue
		}
		payload, ok := pngPayload(dataURL)
		if !ok {
			continue
		}

		var display *NotebookOutput
		for _, output := range cell.Outputs {
			if isDisplayOutput(output) {
				display = output
				break
			}
		}
		if display == nil {
			display = &NotebookOutput{
				OutputType: "display_data",
				Data:       map[string]any{},
				Metadata:   map[string]any{},
			}
			cell.Outputs = append(cell.Outputs, display)
		}
		if display.Data == nil {
			display.Data = map[string]any{}
		}

		for _, mime := range MimeTypesReplacedByPNG {
			delete(display.Data, mime)
		}
		display.Data[MimePNG] = payload
		injected++
	}

	return injected
}
