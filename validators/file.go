// Package validators holds request validation that's shared between
// handlers
package validators

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/viper"
)

var (
	ErrFileTooLarge        = errors.New("file too large")
	ErrFileTypeUnsupported = errors.New("unsupported file type")
	ErrNoFile              = errors.New("no file provided")
)

// VideoFile checks the uploaded file against size and type limits. The
// declared header is checked first because it's cheap, then the actual
// bytes are sniffed to catch spoofed clients.
func VideoFile(fh *multipart.FileHeader) (int, error) {
	if fh == nil {
		return http.StatusBadRequest, ErrNoFile
	}

	if fh.Size > viper.GetInt64("upload.max_size") {
		return http.StatusBadRequest, ErrFileTooLarge
	}

	if ct := fh.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "video/") {
		return http.StatusBadRequest, ErrFileTypeUnsupported
	}

	f, err := fh.Open()
	if err != nil {
		return http.StatusInternalServerError, err
	}
	defer f.Close()

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return http.StatusInternalServerError, err
	}

	if !strings.HasPrefix(mime.String(), "video/") {
		return http.StatusBadRequest, ErrFileTypeUnsupported
	}

	return 0, nil
}
