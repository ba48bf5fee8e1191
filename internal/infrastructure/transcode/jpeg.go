// Package transcode уменьшает кадры перед отправкой:
// декодирование с определением формата по содержимому,
// масштабирование фильтром Lanczos и кодирование в JPEG.
package transcode

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Регистрируем декодер WebP для image.Decode

	"camera-streamer/internal/domain"
)

// JPEGTranscoder перекодирует кадры в JPEG заданного размера и качества
type JPEGTranscoder struct {
	filter imaging.ResampleFilter
}

// NewJPEGTranscoder создает перекодировщик с фильтром Lanczos
func NewJPEGTranscoder() *JPEGTranscoder {
	return &JPEGTranscoder{filter: imaging.Lanczos}
}

// Transcode декодирует кадр, приводит его ровно к size (пропорции не
// сохраняются) и кодирует в JPEG с качеством quality.
func (t *JPEGTranscoder) Transcode(frame *domain.Frame, size domain.Resolution, quality int) (*domain.Frame, error) {
	if frame == nil || len(frame.Data) == 0 {
		return nil, &domain.TranscodeError{Op: "decode", Err: fmt.Errorf("пустой кадр")}
	}
	if err := size.Validate(); err != nil {
		return nil, &domain.TranscodeError{Op: "resize", Err: err}
	}
	if quality < 0 || quality > 100 {
		return nil, &domain.TranscodeError{Op: "encode", Err: fmt.Errorf("качество %d вне диапазона 0..100", quality)}
	}
	// Кодер JPEG принимает качество от 1
	if quality < 1 {
		quality = 1
	}

	img, err := imaging.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return nil, &domain.TranscodeError{Op: "decode", Err: err}
	}

	resized := imaging.Resize(img, int(size.Width), int(size.Height), t.filter)

	var out bytes.Buffer
	out.Grow(len(frame.Data) / 2)
	if err := imaging.Encode(&out, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, &domain.TranscodeError{Op: "encode", Err: err}
	}

	return &domain.Frame{
		Data:       out.Bytes(),
		Format:     domain.FormatMJPEG,
		Number:     frame.Number,
		CapturedAt: frame.CapturedAt,
	}, nil
}
