package validate

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// File validation errors
var (
	ErrInvalidMIMEType  = errors.New("invalid MIME type")
	ErrInvalidExtension = errors.New("invalid file extension")
	ErrFileTooLarge     = errors.New("file too large")
	ErrFileTooSmall     = errors.New("file too small")
)

// MIME types accepted for legajo documents.
const (
	MIMEPDF  = "application/pdf"
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AllowedDocumentTypes defines the MIME types accepted for document uploads.
var AllowedDocumentTypes = []string{
	MIMEPDF,
	MIMEPNG,
	MIMEJPEG,
	MIMEDOCX,
	MIMEXLSX,
}

// AllowedDocumentExtensions defines the file extensions accepted for
// document uploads, lowercased with the leading dot.
var AllowedDocumentExtensions = []string{
	".pdf", ".png", ".jpg", ".jpeg", ".docx", ".xlsx",
}

// FileConstraints defines validation constraints for file uploads.
type FileConstraints struct {
	AllowedTypes []string // Allowed MIME types
	MaxSizeBytes int64    // Maximum file size in bytes
	MinSizeBytes int64    // Minimum file size in bytes (0 = no minimum)
}

// MIMEType validates a MIME type against allowed types.
// Returns the normalized MIME type (lowercased) and an error if invalid.
func MIMEType(mimeType string, allowedTypes []string) (string, error) {
	// Normalize: trim whitespace and lowercase
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))

	if mimeType == "" {
		return "", ErrEmpty
	}

	// Some clients append charset or boundary parameters
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	for _, allowed := range allowedTypes {
		if mimeType == strings.ToLower(allowed) {
			return mimeType, nil
		}
	}

	return "", fmt.Errorf("%w: %q not in allowed types", ErrInvalidMIMEType, mimeType)
}

// FileExtension validates a file name's extension against an allowed list.
// Returns the normalized (lowercased) extension including the dot.
func FileExtension(fileName string, allowed []string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return "", fmt.Errorf("%w: file name has no extension", ErrInvalidExtension)
	}
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w: %q not in allowed extensions", ErrInvalidExtension, ext)
}

// FileSize validates a file size against constraints.
func FileSize(sizeBytes int64, constraints FileConstraints) error {
	if sizeBytes <= 0 {
		return errors.New("file size must be positive")
	}

	if constraints.MinSizeBytes > 0 && sizeBytes < constraints.MinSizeBytes {
		return fmt.Errorf("%w: got %d bytes, minimum is %d", ErrFileTooSmall, sizeBytes, constraints.MinSizeBytes)
	}

	if constraints.MaxSizeBytes > 0 && sizeBytes > constraints.MaxSizeBytes {
		return fmt.Errorf("%w: got %d bytes, maximum is %d", ErrFileTooLarge, sizeBytes, constraints.MaxSizeBytes)
	}

	return nil
}

// File validates both MIME type and file size.
func File(mimeType string, sizeBytes int64, constraints FileConstraints) (string, error) {
	validatedType, err := MIMEType(mimeType, constraints.AllowedTypes)
	if err != nil {
		return "", err
	}

	if err := FileSize(sizeBytes, constraints); err != nil {
		return "", err
	}

	return validatedType, nil
}

// DocumentFile validates a legajo document upload.
// maxSizeBytes <= 0 applies the 16MB default.
func DocumentFile(mimeType string, sizeBytes int64, maxSizeBytes int64) (string, error) {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 16 * 1024 * 1024
	}
	return File(mimeType, sizeBytes, FileConstraints{
		AllowedTypes: AllowedDocumentTypes,
		MaxSizeBytes: maxSizeBytes,
	})
}
