package reminders

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode renders the ledger as indented JSON.
func Encode(l Ledger) ([]byte, error) {
	if l == nil {
		l = Ledger{}
	}
	data, err := json.MarshalIndent(l, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("reminders: encode ledger: %w", err)
	}
	return data, nil
}

// Decode parses a stored ledger. Blank input is an empty ledger.
func Decode(data []byte) (Ledger, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Ledger{}, nil
	}
	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if l == nil {
		l = Ledger{}
	}
	return l, nil
}
