package model

import (
	"encoding/json"
	"fmt"
)

// ParseCatalogRecord decodes a single catalog JSON object and enforces the
// required fields of the source schema. Any violation is an error; there is
// no per-record quarantine path.
func ParseCatalogRecord(data []byte) (CatalogRecord, error) {
	var raw catalogRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return CatalogRecord{}, fmt.Errorf("malformed catalog record: %w", err)
	}
	if err := raw.validate(); err != nil {
		return CatalogRecord{}, fmt.Errorf("invalid catalog record: %w", err)
	}
	return raw.record(), nil
}

// ParseActivityRecord decodes a single activity-event JSON object and
// enforces the required fields of the source schema.
func ParseActivityRecord(data []byte) (ActivityRecord, error) {
	var raw activityRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return ActivityRecord{}, fmt.Errorf("malformed activity record: %w", err)
	}
	if err := raw.validate(); err != nil {
		return ActivityRecord{}, fmt.Errorf("invalid activity record: %w", err)
	}
	return raw.record(), nil
}
