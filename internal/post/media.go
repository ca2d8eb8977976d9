package post

import (
	"encoding/json"
	"fmt"
)

// mediaDoc is the JSON document the surrounding system stores items as:
//
//	{"type": "album", "items": [{"type": "photo", "file_id": "..."}, ...]}
//
// A legacy single-media form {"type": "photo", "file_id": "..."} is
// accepted on read and normalized to a one-item album.
type mediaDoc struct {
	Type  string `json:"type"`
	Items []Item `json:"items,omitempty"`

	// legacy single-media fields
	FileID   string     `json:"file_id,omitempty"`
	UniqueID string     `json:"file_unique_id,omitempty"`
	Source   ItemSource `json:"source,omitempty"`
	Caption  string     `json:"caption,omitempty"`
}

// EncodeItems serializes an ordered item sequence to the media document.
// An empty sequence encodes to "" (text-only post).
func EncodeItems(items []Item) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	b, err := json.Marshal(mediaDoc{Type: "album", Items: items})
	if err != nil {
		return "", fmt.Errorf("encode media: %w", err)
	}
	return string(b), nil
}

// DecodeItems parses the media document back into an ordered item sequence.
func DecodeItems(blob string) ([]Item, error) {
	if blob == "" {
		return nil, nil
	}
	var doc mediaDoc
	if err := json.Unmarshal([]byte(blob), &doc); err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}
	if doc.Type == "album" {
		return doc.Items, nil
	}
	// Legacy single media.
	if doc.FileID == "" {
		return nil, fmt.Errorf("decode media: no items and no file_id (type %q)", doc.Type)
	}
	return []Item{{
		Kind:     ItemKind(doc.Type),
		FileID:   doc.FileID,
		UniqueID: doc.UniqueID,
		Source:   doc.Source,
		Caption:  doc.Caption,
	}}, nil
}
