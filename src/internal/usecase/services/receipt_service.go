package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/thanhpk/randstr"

	"github.com/aspoi/membership-payments/src/internal/adapter/storage"
	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/logger"
	"github.com/aspoi/membership-payments/src/internal/metrics"
)

const (
	receiptPrefix       = "receipts"
	maxReceiptAttempts  = 3
	maxFilenameLength   = 100
	defaultReceiptName  = "receipt"
	defaultMaxReceiptMB = 5
)

var (
	disallowedFilenameChars = regexp.MustCompile(`[^A-Za-z0-9.-]+`)
	allowedReceiptTypes     = map[string]string{
		"image/jpeg":      ".jpg",
		"image/png":       ".png",
		"image/webp":      ".webp",
		"image/gif":       ".gif",
		"application/pdf": ".pdf",
	}
)

type ReceiptService struct {
	store    storage.ObjectStore
	maxBytes int64
	observer *metrics.Observer
	now      func() time.Time
	suffix   func() string
}

func NewReceiptService(store storage.ObjectStore, maxBytes int64, observer *metrics.Observer) *ReceiptService {
	if maxBytes <= 0 {
		maxBytes = defaultMaxReceiptMB << 20
	}
	return &ReceiptService{
		store:    store,
		maxBytes: maxBytes,
		observer: observer,
		now:      func() time.Time { return time.Now().UTC() },
		suffix:   func() string { return strings.ToLower(randstr.Hex(4)) },
	}
}

// Store validates the upload and writes it under a fresh key. It never
// overwrites an existing object.
func (s *ReceiptService) Store(ctx context.Context, upload domain.ReceiptUpload) (domain.Receipt, error) {
	start := time.Now()

	contentType, err := s.validate(upload)
	if err != nil {
		return domain.Receipt{}, err
	}

	uploadedAt := upload.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = s.now()
	}
	name := SanitizeFilename(upload.OriginalFilename, contentType)

	var lastErr error
	for attempt := 0; attempt < maxReceiptAttempts; attempt++ {
		key := ReceiptKey(uploadedAt, name, "")
		if attempt > 0 {
			key = ReceiptKey(uploadedAt, name, s.suffix())
		}

		url, err := s.store.Put(ctx, key, upload.Content, contentType)
		if err == nil {
			s.observer.RecordReceiptUpload(time.Since(start), len(upload.Content), nil)
			logger.Info("receipt stored", logger.Fields{
				"key":         key,
				"contentType": contentType,
				"sizeBytes":   len(upload.Content),
			})
			return domain.Receipt{Token: key, URL: url}, nil
		}
		if !errors.Is(err, domain.ErrObjectExists) {
			s.observer.RecordReceiptUpload(time.Since(start), len(upload.Content), err)
			logger.Error("receipt upload failed", err, logger.Fields{"key": key})
			return domain.Receipt{}, &domain.StorageError{Op: "store receipt", Err: err}
		}

		logger.Warn("receipt key collision", logger.Fields{
			"key":     key,
			"attempt": attempt + 1,
		})
		lastErr = err
	}

	s.observer.RecordReceiptUpload(time.Since(start), len(upload.Content), lastErr)
	return domain.Receipt{}, &domain.StorageError{
		Op:  "store receipt",
		Err: fmt.Errorf("no free key after %d attempts: %w", maxReceiptAttempts, lastErr),
	}
}

func (s *ReceiptService) validate(upload domain.ReceiptUpload) (string, error) {
	if len(upload.Content) == 0 {
		return "", domain.NewValidationError("receipt image is required")
	}
	if int64(len(upload.Content)) > s.maxBytes {
		return "", domain.NewValidationError(fmt.Sprintf("receipt must not exceed %d bytes", s.maxBytes))
	}

	contentType := normalizeContentType(upload.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = normalizeContentType(http.DetectContentType(upload.Content))
	}
	if _, ok := allowedReceiptTypes[contentType]; !ok {
		return "", domain.NewValidationError("receipt must be a JPEG, PNG, WEBP, GIF or PDF file")
	}
	return contentType, nil
}

// ReceiptKey lays receipts out as receipts/YYYY-MM/<unixMillis>_<name>.
func ReceiptKey(uploadedAt time.Time, name string, suffix string) string {
	uploadedAt = uploadedAt.UTC()
	stamp := strconv.FormatInt(uploadedAt.UnixMilli(), 10)
	if suffix != "" {
		stamp += "-" + suffix
	}
	return path.Join(receiptPrefix, uploadedAt.Format("2006-01"), stamp+"_"+name)
}

// SanitizeFilename restricts a client filename to letters, digits, dots and
// dashes and makes sure it carries an extension matching contentType.
func SanitizeFilename(original string, contentType string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(original), `\`, "/"))
	name := disallowedFilenameChars.ReplaceAllString(base, "-")
	name = strings.Trim(name, ".-")
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", ".")
	}
	if name == "" {
		name = defaultReceiptName
	}

	ext := allowedReceiptTypes[contentType]
	if ext != "" && !strings.EqualFold(path.Ext(name), ext) && !(ext == ".jpg" && strings.EqualFold(path.Ext(name), ".jpeg")) {
		name += ext
	}
	if len(name) > maxFilenameLength {
		name = name[len(name)-maxFilenameLength:]
		name = strings.TrimLeft(name, ".-")
	}
	return name
}

func normalizeContentType(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(value)
	}
	return strings.ToLower(mediaType)
}
