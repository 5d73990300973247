package artwork

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
)

var ErrInvalidOptions = errors.New("artwork: invalid options")

// Options controls how cover art is prepared before transfer.
type Options struct {
	// Size is the square edge in pixels.
	Size int
	// Quality is the JPEG quality, 1-100.
	Quality int
	// Raw sends the file bytes unchanged.
	Raw bool
}

// DefaultOptions match the display's 160px album art slot.
func DefaultOptions() Options {
	return Options{Size: 160, Quality: 50}
}

func (o Options) Validate() error {
	if o.Raw {
		return nil
	}
	if o.Size < 1 {
		return fmt.Errorf("%w: size %d", ErrInvalidOptions, o.Size)
	}
	if o.Quality < 1 || o.Quality > 100 {
		return fmt.Errorf("%w: quality %d", ErrInvalidOptions, o.Quality)
	}
	return nil
}

// Load reads an image file and returns the bytes to transfer.
func Load(path string, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artwork: read %s: %w", path, err)
	}
	if opts.Raw {
		return data, nil
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("artwork: decode %s: %w", path, err)
	}
	out, err := Encode(img, opts)
	if err != nil {
		return nil, fmt.Errorf("artwork: encode %s (%s): %w", path, format, err)
	}
	return out, nil
}

// Encode scales img to a Size x Size square and encodes it as JPEG.
func Encode(img image.Image, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, opts.Size, opts.Size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
