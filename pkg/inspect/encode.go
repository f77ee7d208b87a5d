package inspect

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Format selects a summary encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON, FormatCBOR:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json or cbor)", s)
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("inspect: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalCBOR encodes a summary as canonical CBOR, so equal summaries encode
// to equal bytes.
func MarshalCBOR(s *Summary) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalCBOR decodes a summary written by MarshalCBOR.
func UnmarshalCBOR(data []byte) (*Summary, error) {
	var s Summary
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("inspect: unmarshal summary: %w", err)
	}
	return &s, nil
}

// Encode writes s to w in the given format. Styles only apply to text.
func Encode(w io.Writer, s *Summary, f Format, st Styles) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatCBOR:
		data, err := MarshalCBOR(s)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatText, "":
		return WriteText(w, s, st)
	}
	return fmt.Errorf("unknown format %q", f)
}
