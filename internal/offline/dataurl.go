package offline

import (
	"encoding/base64"
	"errors"
	"strings"
)

// DefaultContentType is assumed for photos without a declared type.
const DefaultContentType = "image/jpeg"

// ErrInvalidPhoto is returned for a queued photo that is not a base64 data URL.
var ErrInvalidPhoto = errors.New("invalid photo data")

// EncodeDataURL embeds data in a base64 data URL.
func EncodeDataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = DefaultContentType
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL extracts the content type and payload of a base64 data URL.
func DecodeDataURL(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, ErrInvalidPhoto
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidPhoto
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrInvalidPhoto
	}
	if contentType == "" {
		contentType = DefaultContentType
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errors.Join(ErrInvalidPhoto, err)
	}
	return contentType, data, nil
}

func photoName(contentType string) string {
	switch contentType {
	case "image/png":
		return "photo.png"
	case "image/gif":
		return "photo.gif"
	case "image/webp":
		return "photo.webp"
	default:
		return "photo.jpg"
	}
}
