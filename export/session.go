package export

import "encoding/json"

// CellID identifies a notebook cell.
type CellID string

// CellOutput is the visible output of an executed cell. Data holds a string,
// a list of strings, or a decoded mime bundle depending on the mime type.
type CellOutput struct {
	MimeType string
	Data     any
}

// CellNotification is the last known execution result for a cell.
type CellNotification struct {
	CellID CellID
	// Code is the cell's source, when the session shares it.
	Code   string
	Output *CellOutput
}

// SessionView is a snapshot of an executed notebook session.
type SessionView struct {
	// Cells maps cell ids to their latest notifications.
	Cells map[CellID]*CellNotification
	// CellOrder lists cell ids in notebook order when known.
	CellOrder []CellID
}

// NewSessionView creates an empty session view.
func NewSessionView() *SessionView {
	return &SessionView{Cells: make(map[CellID]*CellNotification)}
}

// SetOutput records the output for a cell, keeping any known source.
func (v *SessionView) SetOutput(id CellID, output *CellOutput) {
	cell := v.ensureCell(id)
	cell.Output = output
}

// SetCode records the source for a cell, keeping any known output.
func (v *SessionView) SetCode(id CellID, code string) {
	cell := v.ensureCell(id)
	cell.Code = code
}

func (v *SessionView) ensureCell(id CellID) *CellNotification {
	if v.Cells == nil {
		v.Cells = make(map[CellID]*CellNotification)
	}
	cell, ok := v.Cells[id]
	if !ok || cell == nil {
		cell = &CellNotification{CellID: id}
		v.Cells[id] = cell
	}
	return cell
}

// Clone deep-copies the session view so capture-time normalization never
// leaks back into the live session.
func (v *SessionView) Clone() *SessionView {
	if v == nil {
		return nil
	}
	clone := &SessionView{
		Cells:     make(map[CellID]*CellNotification, len(v.Cells)),
		CellOrder: append([]CellID(nil), v.CellOrder...),
	}
	for id, notification := range v.Cells {
		if notification == nil {
			clone.Cells[id] = nil
			continue
		}
		copied := &CellNotification{CellID: notification.CellID, Code: notification.Code}
		if notification.Output != nil {
			copied.Output = &CellOutput{
				MimeType: notification.Output.MimeType,
				Data:     cloneOutputData(notification.Output.Data),
			}
		}
		clone.Cells[id] = copied
	}
	return clone
}

func cloneOutputData(data any) any {
	switch value := data.(type) {
	case nil:
		return nil
	case string:
		return value
	case []string:
		return append([]string(nil), value...)
	case []any:
		copied := make([]any, len(value))
		for i, item := range value {
			copied[i] = cloneOutputData(item)
		}
		return copied
	case map[string]any:
		copied := make(map[string]any, len(value))
		for key, item := range value {
			copied[key] = cloneOutputData(item)
		}
		return copied
	default:
		// Fall back to a JSON round trip for anything structured.
		raw, err := json.Marshal(value)
		if err != nil {
			return value
		}
		var copied any
		if err := json.Unmarshal(raw, &copied); err != nil {
			return value
		}
		return copied
	}
}

// loadMimeBundle decodes mime bundle data into a map. Bundles arrive either
// already decoded or as a JSON string.
func loadMimeBundle(data any) map[string]any {
	switch value := data.(type) {
	case map[string]any:
		return value
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			return nil
		}
		return decoded
	default:
		return nil
	}
}
