package entry

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// EncodeSource compresses program source with brotli and encodes it as
// standard base64.
func EncodeSource(src []byte) (string, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(src); err != nil {
		return "", fmt.Errorf("failed to compress source: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to compress source: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeSource reverses the given source encoding.
func DecodeSource(encoding, source string) ([]byte, error) {
	switch encoding {
	case entities.SourceEncodingBase64, entities.SourceEncodingBrotliBase64:
	default:
		return nil, fmt.Errorf("unknown source encoding %q", encoding)
	}

	raw, err := base64.StdEncoding.DecodeString(source)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 source: %w", err)
	}
	if encoding == entities.SourceEncodingBase64 {
		return raw, nil
	}

	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("invalid brotli source: %w", err)
	}
	return out, nil
}
