package repair

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EntryFilter handles payloads that parse as a JSON object but hold entries
// the caller cannot decode. Entries rejected by Keep are dropped; the rest
// are kept as written. Payloads that do not parse are left to the other
// strategies.
type EntryFilter struct {
	Keep func(value json.RawMessage) error
}

func (EntryFilter) Name() string { return NameEntryFilter }

func (f EntryFilter) Repair(raw string) (string, error) {
	entries, err := Entries(raw)
	if err != nil {
		return "", err
	}

	kept := make(map[string]json.RawMessage, len(entries))
	for key, value := range entries {
		if f.Keep == nil || f.Keep(value) == nil {
			kept[key] = value
		}
	}
	if len(kept) == len(entries) {
		return "", fmt.Errorf("%w: every entry decodes", ErrUnrecoverable)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(kept); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnrecoverable, err)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// Entries decodes the top-level object of raw without interpreting its
// values.
func Entries(raw string) (map[string]json.RawMessage, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecoverable, err)
	}
	return entries, nil
}
