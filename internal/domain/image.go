package domain

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImageHandle неизменяемая ссылка на закодированное изображение.
// Байты копируются при создании и при выдаче наружу.
type ImageHandle struct {
	id        string
	mimeType  string
	data      []byte
	width     int
	height    int
	createdAt time.Time
}

// NewImageHandle проверяет, что данные декодируемы, и создает handle.
// Пустой mimeType определяется по содержимому.
func NewImageHandle(mimeType string, data []byte) (ImageHandle, error) {
	if len(data) == 0 {
		return ImageHandle{}, fmt.Errorf("%w: пустые данные", ErrUnsupportedImage)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageHandle{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	detected := "image/" + format
	if mimeType == "" || normalizeMIME(mimeType) != detected {
		mimeType = detected
	}

	return ImageHandle{
		id:        uuid.NewString(),
		mimeType:  mimeType,
		data:      bytes.Clone(data),
		width:     cfg.Width,
		height:    cfg.Height,
		createdAt: time.Now(),
	}, nil
}

func (h ImageHandle) ID() string           { return h.id }
func (h ImageHandle) MIMEType() string     { return h.mimeType }
func (h ImageHandle) Width() int           { return h.width }
func (h ImageHandle) Height() int          { return h.height }
func (h ImageHandle) Size() int            { return len(h.data) }
func (h ImageHandle) CreatedAt() time.Time { return h.createdAt }

// IsZero сообщает, что handle не был создан
func (h ImageHandle) IsZero() bool {
	return h.data == nil
}

// Bytes возвращает копию закодированных данных
func (h ImageHandle) Bytes() []byte {
	return bytes.Clone(h.data)
}

// Reader открывает данные на чтение без копирования
func (h ImageHandle) Reader() io.Reader {
	return bytes.NewReader(h.data)
}

// DataURI кодирует изображение так же, как canvas.toDataURL
func (h ImageHandle) DataURI() string {
	return "data:" + h.mimeType + ";base64," + base64.StdEncoding.EncodeToString(h.data)
}

// Decode декодирует изображение в растр
func (h ImageHandle) Decode() (image.Image, error) {
	if h.IsZero() {
		return nil, fmt.Errorf("%w: пустой handle", ErrUnsupportedImage)
	}
	img, _, err := image.Decode(bytes.NewReader(h.data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}

// UploadPolicy ограничения на загружаемые пользователем файлы
type UploadPolicy struct {
	MaxBytes     int64
	AllowedTypes []string
}

// MaxUploadBytes лимит загрузки по умолчанию, 10MB
const MaxUploadBytes = 10 * 1024 * 1024

// DefaultUploadPolicy разрешает JPG и PNG до 10MB
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxBytes:     MaxUploadBytes,
		AllowedTypes: []string{"image/jpeg", "image/jpg", "image/png"},
	}
}

// Validate проверяет тип и размер файла до декодирования
func (p UploadPolicy) Validate(mimeType string, size int64) error {
	if !slices.Contains(p.AllowedTypes, strings.ToLower(mimeType)) {
		return fmt.Errorf("%w: %s", ErrUnsupportedImage, mimeType)
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return fmt.Errorf("%w: %d байт (максимум %d)", ErrImageTooLarge, size, p.MaxBytes)
	}
	return nil
}

// DecodeUpload проверяет загруженный файл и создает из него ImageHandle.
// Формат по содержимому должен быть JPEG или PNG и совпадать с заявленным типом.
func (p UploadPolicy) DecodeUpload(mimeType string, data []byte) (ImageHandle, error) {
	if err := p.Validate(mimeType, int64(len(data))); err != nil {
		return ImageHandle{}, err
	}

	declared := normalizeMIME(mimeType)
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageHandle{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if format != "jpeg" && format != "png" {
		return ImageHandle{}, fmt.Errorf("%w: содержимое в формате %s", ErrUnsupportedImage, format)
	}
	if detected := "image/" + format; detected != declared {
		return ImageHandle{}, fmt.Errorf("%w: заявлен %s, содержимое %s", ErrUnsupportedImage, declared, detected)
	}
	return NewImageHandle(declared, data)
}

// DecodeDataURI разбирает строку вида data:image/jpeg;base64,... и проверяет ее как загрузку
func (p UploadPolicy) DecodeDataURI(uri string) (ImageHandle, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return ImageHandle{}, fmt.Errorf("%w: ожидается data URI", ErrUnsupportedImage)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return ImageHandle{}, fmt.Errorf("%w: data URI без данных", ErrUnsupportedImage)
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return ImageHandle{}, fmt.Errorf("%w: поддерживается только base64", ErrUnsupportedImage)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ImageHandle{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return p.DecodeUpload(mimeType, data)
}

func normalizeMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "image/jpg" {
		return "image/jpeg"
	}
	return mimeType
}
