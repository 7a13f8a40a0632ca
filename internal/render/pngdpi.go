package render

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"math"
)

// encodePNGWithDPI encodes img as PNG and stamps the physical pixel density.
// The stdlib encoder has no pHYs support, so the chunk is spliced in right
// after IHDR (signature 8 bytes + 25-byte IHDR chunk).
func encodePNGWithDPI(img image.Image, dpi int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	b := buf.Bytes()
	const ihdrEnd = 8 + 25
	if len(b) < ihdrEnd {
		return nil, fmt.Errorf("short png encoding: %d bytes", len(b))
	}

	out := make([]byte, 0, len(b)+21)
	out = append(out, b[:ihdrEnd]...)
	out = append(out, physChunk(dpi)...)
	out = append(out, b[ihdrEnd:]...)
	return out, nil
}

// physChunk builds the 21-byte pHYs chunk: pixels per metre on both axes,
// unit specifier 1 (metre).
func physChunk(dpi int) []byte {
	ppm := uint32(math.Round(float64(dpi) / 0.0254))

	chunk := make([]byte, 0, 21)
	chunk = binary.BigEndian.AppendUint32(chunk, 9) // data length
	chunk = append(chunk, 'p', 'H', 'Y', 's')
	chunk = binary.BigEndian.AppendUint32(chunk, ppm)
	chunk = binary.BigEndian.AppendUint32(chunk, ppm)
	chunk = append(chunk, 1)
	crc := crc32.ChecksumIEEE(chunk[4:]) // type + data
	chunk = binary.BigEndian.AppendUint32(chunk, crc)
	return chunk
}
