package history

import (
	"encoding/json"
	"fmt"
)

// SidecarSuffix is appended to a file name to find its history sidecar.
const SidecarSuffix = ".history.json"

// Reference points at an earlier version of an item, either by its
// history uuid or by content identity.
type Reference struct {
	UUID       string `json:"uuid,omitempty"`
	UniqueHash string `json:"hash,omitempty"`
	FileSize   int64  `json:"size,omitempty"`
}

// Description is the raw history of one file as written by an editor.
type Description struct {
	UUID        string      `json:"uuid"`
	DerivedFrom []Reference `json:"derived_from,omitempty"`
}

// ParseDescription decodes a history sidecar.
func ParseDescription(data []byte) (*Description, error) {
	var d Description
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return &d, nil
}

// HasReferences reports whether the description needs resolving.
func (d *Description) HasReferences() bool {
	return len(d.DerivedFrom) > 0
}
