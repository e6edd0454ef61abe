package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG format support

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const (
	defaultTileSize   = 310 // Large square tile edge in pixels
	defaultBlurRadius = 12.0
	jpegQuality       = 90
)

// ThumbnailConfig holds configuration for tile artwork processing
type ThumbnailConfig struct {
	Size       int
	BlurRadius float64
}

// TileThumbnailer turns artwork of any shape into a square tile image.
// Non-square artwork is fitted whole over a blurred fill of itself instead of being cropped.
type TileThumbnailer struct {
	logger *zap.Logger
	config ThumbnailConfig
}

// NewTileThumbnailer creates a new thumbnail processor with the default tile size
func NewTileThumbnailer(logger *zap.Logger) *TileThumbnailer {
	return &TileThumbnailer{
		logger: logger,
		config: ThumbnailConfig{
			Size:       defaultTileSize,
			BlurRadius: defaultBlurRadius,
		},
	}
}

// Process decodes artwork, squares it and re-encodes it as JPEG
func (p *TileThumbnailer) Process(ctx context.Context, imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	// Validate image dimensions to prevent division by zero
	bounds := img.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	size := p.config.Size
	var result image.Image

	if bounds.Dx() == bounds.Dy() {
		result = imaging.Resize(img, size, size, imaging.Lanczos)
	} else {
		p.logger.Debug("Compositing non-square artwork",
			zap.Int("w", bounds.Dx()),
			zap.Int("h", bounds.Dy()))
		background := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
		background = imaging.Blur(background, p.config.BlurRadius)

		fitted := imaging.Fit(img, size, size, imaging.Lanczos)
		fb := fitted.Bounds()
		offset := image.Pt((size-fb.Dx())/2, (size-fb.Dy())/2)
		result = imaging.Paste(background, fitted, offset)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, result, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	p.logger.Debug("Image processed successfully", zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}
