package badger

import (
	"encoding/json"
	"fmt"

	"github.com/campusfiles/zonefs/pkg/metadata"
)

// JSON is used for all record values. Metadata rows are small and written at
// human interaction rates, so encoding cost is irrelevant next to the
// debuggability of readable values (`badger info --dir ...` and friends).

func encodeFileRecord(rec *metadata.FileRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode file record: %w", err)
	}
	return data, nil
}

func decodeFileRecord(data []byte) (*metadata.FileRecord, error) {
	var rec metadata.FileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode file record: %w", err)
	}
	return &rec, nil
}

func encodeClipboard(cb *metadata.Clipboard) ([]byte, error) {
	data, err := json.Marshal(cb)
	if err != nil {
		return nil, fmt.Errorf("failed to encode clipboard: %w", err)
	}
	return data, nil
}

func decodeClipboard(data []byte) (*metadata.Clipboard, error) {
	var cb metadata.Clipboard
	if err := json.Unmarshal(data, &cb); err != nil {
		return nil, fmt.Errorf("failed to decode clipboard: %w", err)
	}
	return &cb, nil
}

func encodeExpanded(ef *metadata.ExpandedFolder) ([]byte, error) {
	data, err := json.Marshal(ef)
	if err != nil {
		return nil, fmt.Errorf("failed to encode expanded folder: %w", err)
	}
	return data, nil
}

func decodeExpanded(data []byte) (*metadata.ExpandedFolder, error) {
	var ef metadata.ExpandedFolder
	if err := json.Unmarshal(data, &ef); err != nil {
		return nil, fmt.Errorf("failed to decode expanded folder: %w", err)
	}
	return &ef, nil
}
