package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalApprovalRecord serializes an ApprovalRecord to JSON bytes.
func MarshalApprovalRecord(r *ApprovalRecord) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cannot marshal nil ApprovalRecord")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ApprovalRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalApprovalRecord deserializes an ApprovalRecord from JSON bytes.
func UnmarshalApprovalRecord(data []byte) (*ApprovalRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var r ApprovalRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to ApprovalRecord: %w", err)
	}

	return &r, nil
}
