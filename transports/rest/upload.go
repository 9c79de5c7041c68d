package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"echo/core"
)

// audioField is the multipart part carrying the recording.
const audioField = "audio"

var errMissingAudio = errors.New("missing audio part")

// multipart overhead allowed on top of MaxUploadBytes
const formSlack = 1 << 20

func (s *Server) readAudio(w http.ResponseWriter, r *http.Request) (core.AudioInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+formSlack)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes + formSlack); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.AudioInput{}, core.NewValidationError(audioField, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return core.AudioInput{}, core.NewValidationError(audioField, "expected a multipart/form-data body")
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(audioField)
	if err != nil {
		return core.AudioInput{}, core.NewValidationError(audioField, errMissingAudio.Error())
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return core.AudioInput{}, fmt.Errorf("rest: read audio part: %w", err)
	}
	return core.AudioInput{
		Data:     data,
		MimeType: header.Header.Get("Content-Type"),
		FileName: header.Filename,
	}, nil
}
