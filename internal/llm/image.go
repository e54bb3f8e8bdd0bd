package llm

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeDataURI unpacks a "data:<mime>;base64,<payload>" attachment as
// produced by the capture UI.
func DecodeDataURI(uri string) (Image, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return Image{}, fmt.Errorf("image is not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, fmt.Errorf("malformed data URI")
	}
	mime, enc, ok := strings.Cut(meta, ";")
	if !ok || enc != "base64" {
		return Image{}, fmt.Errorf("unsupported data URI encoding %q", meta)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("decode image payload: %w", err)
	}
	if mime == "" {
		mime = "image/png"
	}
	return Image{MIME: mime, Data: data}, nil
}
