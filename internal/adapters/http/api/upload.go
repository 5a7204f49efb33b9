package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/okian/smartbiz/internal/adapters/backend"
)

// Model and method choices offered by the dashboard. The first entry is the default.
var (
	ForecastModels = []string{"prophet", "arima", "lstm", "gru"}    //nolint:gochecknoglobals // fixed option list
	SegmentMethods = []string{"kmeans", "dbscan"}                   //nolint:gochecknoglobals // fixed option list
	AnomalyMethods = []string{"isolation_forest", "svm", "zscore"} //nolint:gochecknoglobals // fixed option list
)

const (
	fileField       = "file"
	multipartMemory = 1 << 20
	formOverhead    = 64 << 10
)

// choose returns value, or the first option when value is empty.
func choose(options []string, name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return options[0], nil
	}
	if !slices.Contains(options, value) {
		return "", fmt.Errorf("%w: unknown %s %q; expected one of %s", ErrValidation, name, value, strings.Join(options, ", "))
	}
	return value, nil
}

type uploadReader struct {
	maxBytes int64
}

// read extracts the CSV file from a multipart request. Other form values are
// available through r.FormValue afterwards.
func (u uploadReader) read(w http.ResponseWriter, r *http.Request) (backend.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, u.maxBytes+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return backend.Upload{}, u.tooLarge()
		}
		return backend.Upload{}, fmt.Errorf("%w: please upload a CSV file", ErrValidation)
	}

	f, hdr, err := r.FormFile(fileField)
	if err != nil {
		return backend.Upload{}, fmt.Errorf("%w: please upload a CSV file", ErrValidation)
	}
	defer func() { _ = f.Close() }()

	if !strings.EqualFold(filepath.Ext(hdr.Filename), ".csv") {
		return backend.Upload{}, fmt.Errorf("%w: only .csv files are accepted", ErrValidation)
	}

	content, err := io.ReadAll(io.LimitReader(f, u.maxBytes+1))
	if err != nil {
		return backend.Upload{}, fmt.Errorf("%w: could not read the uploaded file", ErrValidation)
	}
	if int64(len(content)) > u.maxBytes {
		return backend.Upload{}, u.tooLarge()
	}
	return backend.Upload{Filename: filepath.Base(hdr.Filename), Content: content}, nil
}

func (u uploadReader) tooLarge() error {
	return fmt.Errorf("%w: file exceeds the %d byte limit", ErrValidation, u.maxBytes)
}
