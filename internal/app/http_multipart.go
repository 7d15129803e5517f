package app

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"cleanstreet/api/internal/media"
)

const (
	maxPhotoBytes   = 5 << 20
	multipartMemory = 8 << 20
)

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseMultipart caps the body at maxFiles photos plus form overhead.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxFiles int) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxFiles)*maxPhotoBytes+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return validationError("Invalid multipart form")
	}
	return nil
}

// openPhotos opens up to max files sent under any of fields. The returned
// cleanup closes every opened file and must be called once the upload is done.
func openPhotos(r *http.Request, max int, fields ...string) ([]media.File, func(), error) {
	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		for _, field := range fields {
			headers = append(headers, r.MultipartForm.File[field]...)
		}
	}

	closers := make([]io.Closer, 0, len(headers))
	cleanup := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	if len(headers) > max {
		return nil, cleanup, validationError(fmt.Sprintf("At most %d photos are allowed", max))
	}

	files := make([]media.File, 0, len(headers))
	for _, header := range headers {
		if header.Size > maxPhotoBytes {
			cleanup()
			return nil, func() {}, validationError("Photo exceeds the 5MB limit")
		}
		f, err := header.Open()
		if err != nil {
			cleanup()
			return nil, func() {}, validationError("Unreadable photo upload")
		}
		closers = append(closers, f)
		files = append(files, media.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        f,
		})
	}
	return files, cleanup, nil
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}
