// Package ocr turns scanned invoice images into text using Azure Computer Vision.
package ocr

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"github.com/disintegration/imaging"
	"github.com/invoice-reconciler/internal/config"
	"github.com/invoice-reconciler/internal/domain/document"
	"github.com/rotisserie/eris"
)

// DefaultConfidence is reported when the engine returns text without a score
const DefaultConfidence = 0.7

// maxDimension bounds the enhanced image; larger scans are downscaled
const maxDimension = 3200

var ErrEmptyImage = eris.New("image is empty")

// Result is what the engine hands back for one image
type Result struct {
	FullText   string          `json:"full_text"`
	Confidence float64         `json:"confidence"`
	Logos      []document.Logo `json:"logos,omitempty"`
	Language   string          `json:"language,omitempty"`
	Lines      int             `json:"lines"`
}

// Extractor recognizes text in an image
type Extractor interface {
	ExtractText(ctx context.Context, image []byte) (*Result, error)
}

type textRecognizer interface {
	RecognizePrintedTextInStream(ctx context.Context, detectOrientation bool, imageParameter io.ReadCloser, language computervision.OcrLanguages) (computervision.OcrResult, error)
}

// AzureExtractor calls the Computer Vision printed-text endpoint
type AzureExtractor struct {
	client  textRecognizer
	enhance bool
	timeout time.Duration
	logger  *slog.Logger
}

// NewAzureExtractor creates an extractor authenticated with the configured key
func NewAzureExtractor(logger *slog.Logger, cfg config.OCRConfig) *AzureExtractor {
	client := computervision.New(cfg.Endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(cfg.APIKey)

	return &AzureExtractor{
		client:  client,
		enhance: cfg.Enhance,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// ExtractText optionally enhances the image, then recognizes its text line by line
func (e *AzureExtractor) ExtractText(ctx context.Context, image []byte) (*Result, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	if e.enhance {
		enhanced, err := Enhance(image)
		if err != nil {
			e.logger.Warn("Image enhancement failed, using original", "error", err)
		} else {
			image = enhanced
		}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	ocrResult, err := e.client.RecognizePrintedTextInStream(ctx, true, io.NopCloser(bytes.NewReader(image)), computervision.OcrLanguagesEn)
	if err != nil {
		return nil, eris.Wrap(err, "failed to recognize text")
	}

	result := toResult(ocrResult)
	e.logger.Info("OCR completed",
		"lines", result.Lines,
		"language", result.Language,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// toResult flattens regions into newline separated text in reading order
func toResult(r computervision.OcrResult) *Result {
	result := &Result{}
	if r.Language != nil {
		result.Language = *r.Language
	}

	var lines []string
	if r.Regions != nil {
		for _, region := range *r.Regions {
			if region.Lines == nil {
				continue
			}
			for _, line := range *region.Lines {
				if line.Words == nil {
					continue
				}
				words := make([]string, 0, len(*line.Words))
				for _, word := range *line.Words {
					if word.Text != nil && *word.Text != "" {
						words = append(words, *word.Text)
					}
				}
				if len(words) > 0 {
					lines = append(lines, strings.Join(words, " "))
				}
			}
		}
	}

	result.FullText = strings.Join(lines, "\n")
	result.Lines = len(lines)
	if result.FullText != "" {
		result.Confidence = DefaultConfidence
	}
	return result
}

// Enhance prepares a scan for recognition: grayscale, contrast, sharpening and a size cap.
// The output is PNG encoded.
func Enhance(data []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, eris.Wrap(err, "failed to decode image")
	}

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)
	img = imaging.AdjustGamma(img, 1.2)

	b := img.Bounds()
	if b.Dx() > maxDimension || b.Dy() > maxDimension {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, eris.Wrap(err, "failed to encode image")
	}
	return buf.Bytes(), nil
}
