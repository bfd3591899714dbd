package gateway

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ThumbnailSize is the edge of the square avatar thumbnail in pixels.
const ThumbnailSize = 160

// thumbnailDataURI decodes raw image bytes, crops them to a square thumbnail and
// returns it as a JPEG data URI.
func thumbnailDataURI(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode photo: %w", err)
	}

	var thumb image.Image = img
	if b := img.Bounds(); b.Dx() > ThumbnailSize || b.Dy() > ThumbnailSize {
		thumb = imaging.Fill(img, ThumbnailSize, ThumbnailSize, imaging.Center, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
