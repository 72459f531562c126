// Package preprocess prepares a receipt photo for Tesseract: grayscale,
// upscale, sharpen, contrast, hard threshold. Adapted from
// pkg/ocr/preprocess.go's createProcessedImage, generalized to operate on
// in-memory image bytes instead of a fixed source/destination file pair so
// it can sit ahead of any OCR provider that wants a binarized PNG.
package preprocess

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

// DefaultThreshold is the brightness cutoff used for binarization, tuned
// against receipt photos (tweak between ~180-220 if needed).
const DefaultThreshold uint8 = 200

// Options controls the preprocessing pipeline. Zero value uses the
// defaults: 2x resize, sharpen amount 1.0, contrast 100.0, DefaultThreshold.
type Options struct {
	ResizeFactor    float64
	SharpenAmount   float64
	ContrastPercent float64
	Threshold       uint8
}

func (o Options) withDefaults() Options {
	if o.ResizeFactor == 0 {
		o.ResizeFactor = 2.0
	}
	if o.SharpenAmount == 0 {
		o.SharpenAmount = 1.0
	}
	if o.ContrastPercent == 0 {
		o.ContrastPercent = 100.0
	}
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// Process runs the grayscale -> resize -> sharpen -> contrast -> threshold
// pipeline over an image held in memory and returns it re-encoded as PNG.
func Process(imageBytes []byte, opts Options) (processed []byte, e *xerr.Error) {
	opts = opts.withDefaults()

	tl.Log(tl.Info1, palette.Blue, "Preprocessing %v bytes for OCR (threshold=%v)", len(imageBytes), opts.Threshold)

	originalImage, decodeErr := imaging.Decode(bytes.NewReader(imageBytes))
	if decodeErr != nil {
		return nil, xerr.NewError(decodeErr, "decode source image for preprocessing", len(imageBytes))
	}

	grayscaleImage := imaging.Grayscale(originalImage)

	bounds := grayscaleImage.Bounds()
	targetHeight := int(float64(bounds.Dy()) * opts.ResizeFactor)
	resizedImage := imaging.Resize(grayscaleImage, 0, targetHeight, imaging.Lanczos)

	sharpenedImage := imaging.Sharpen(resizedImage, opts.SharpenAmount)

	highContrastImage := imaging.AdjustContrast(sharpenedImage, opts.ContrastPercent)

	binarizedImage := imaging.AdjustFunc(highContrastImage, thresholdFunc(opts.Threshold))

	var buf bytes.Buffer
	if encodeErr := imaging.Encode(&buf, binarizedImage, imaging.PNG); encodeErr != nil {
		return nil, xerr.NewError(encodeErr, "encode processed image as PNG", nil)
	}

	tl.Log(tl.Info1, palette.Green, "Preprocessed image is %v bytes", buf.Len())
	return buf.Bytes(), nil
}

// thresholdFunc mimics the aggressive binarization Tesseract's own
// ImageMagick pipeline tends to like for receipts. The image is already
// grayscale, so the red channel alone is a usable brightness proxy.
func thresholdFunc(threshold uint8) func(color.NRGBA) color.NRGBA {
	return func(c color.NRGBA) color.NRGBA {
		if c.R > threshold {
			return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		}
		return color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	}
}

// DecodeConfig reports the dimensions of imageBytes without fully decoding
// it, used by adapters that need to size-check before running OCR.
func DecodeConfig(imageBytes []byte) (image.Config, string, error) {
	return image.DecodeConfig(bytes.NewReader(imageBytes))
}
