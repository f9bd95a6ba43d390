package openapi

import (
	"encoding/json"
	"os"
)

// MarshalJSON renders the spec as indented JSON.
func MarshalJSON(spec *Spec) ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}

// WriteJSON renders the spec as indented JSON into filename.
func WriteJSON(spec *Spec, filename string) error {
	data, err := MarshalJSON(spec)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, append(data, '\n'), 0o644)
}
