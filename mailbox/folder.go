package mailbox

import (
	"github.com/emersion/go-imap/utf7"
)

// DecodeFolderName maps a raw modified UTF-7 folder name (as listed by the
// server, e.g. "&BB4EQgQ,BEAEMAQyBDsENQQ9BD0ESwQ1-") to readable text. Names
// that do not decode are returned unchanged.
func DecodeFolderName(raw string) string {
	name, err := decodeFolderName(raw)
	if err != nil {
		return raw
	}
	return name
}

func decodeFolderName(raw string) (string, error) {
	return utf7.Encoding.NewDecoder().String(raw)
}

// EncodeFolderName is the inverse of DecodeFolderName, with the same
// fallback to the input.
func EncodeFolderName(name string) string {
	raw, err := encodeFolderName(name)
	if err != nil {
		return name
	}
	return raw
}

func encodeFolderName(name string) (string, error) {
	return utf7.Encoding.NewEncoder().String(name)
}
