package qrcode

import (
	"encoding/base64"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const (
	minSize     = 128
	maxSize     = 1024
	defaultSize = 256
)

// Encoder renders attendance tokens into PNG QR codes.
type Encoder struct {
	size  int
	level goqrcode.RecoveryLevel
}

// NewEncoder builds an encoder producing size x size images. Out of range
// sizes fall back to 256px.
func NewEncoder(size int) *Encoder {
	if size < minSize || size > maxSize {
		size = defaultSize
	}
	return &Encoder{size: size, level: goqrcode.Medium}
}

// PNG encodes content as a PNG image.
func (e *Encoder) PNG(content string) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qr content is empty")
	}
	png, err := goqrcode.Encode(content, e.level, e.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// DataURL encodes content as a base64 PNG data URL suitable for an <img> tag.
func (e *Encoder) DataURL(content string) (string, error) {
	png, err := e.PNG(content)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
