package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Stdin is read by ReadInput when no argument is given.
var Stdin io.Reader = os.Stdin

// ReadInput reads data from arg, treated as a file path if it exists on
// disk, otherwise as literal text. An empty arg or "-" reads Stdin.
func ReadInput(arg string) ([]byte, error) {
	if arg != "" && arg != "-" {
		data, err := os.ReadFile(arg) //nolint:gosec // user-supplied input file
		if err == nil {
			return data, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return []byte(arg), nil
		}
		return nil, fmt.Errorf("read input: %w", err)
	}
	data, err := io.ReadAll(Stdin)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

// DecodeInput reads arg with ReadInput and decodes it as JSON into v.
// Unknown fields are rejected.
func DecodeInput(arg string, v any) error {
	data, err := ReadInput(arg)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}
