package config

import (
	"fmt"

	"golang.org/x/text/encoding/ianaindex"
)

// ResolvePath returns the database filename as UTF-8.
//
// When PathEncoding is set, Path is treated as bytes in that charset
// (an IANA name such as "ISO-8859-1" or "windows-1252") and decoded.
// Otherwise Path is returned unchanged.
func (d Database) ResolvePath() (string, error) {
	if d.PathEncoding == "" {
		return d.Path, nil
	}

	enc, err := ianaindex.IANA.Encoding(d.PathEncoding)
	if err != nil {
		return "", fmt.Errorf("path encoding %q: %w", d.PathEncoding, err)
	}
	if enc == nil {
		return "", fmt.Errorf("path encoding %q: not supported", d.PathEncoding)
	}

	out, err := enc.NewDecoder().String(d.Path)
	if err != nil {
		return "", fmt.Errorf("decode path from %s: %w", d.PathEncoding, err)
	}
	return out, nil
}
