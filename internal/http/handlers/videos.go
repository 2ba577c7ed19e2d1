package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"studio/internal/video"
)

const maxVideoImage = 10 << 20

// VideosGenerate starts a render. JSON bodies cover Creatomate and Runway;
// Stability takes the still as a multipart "image" part.
func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	var req video.Request
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var ok bool
		if req, ok = a.videoForm(w, r); !ok {
			return
		}
	} else if !a.decode(w, r, &req) {
		return
	}

	snap, err := a.Video.Generate(r.Context(), a.currentUserID(r), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, snap)
}

func (a *App) videoForm(w http.ResponseWriter, r *http.Request) (video.Request, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxVideoImage+maxJSONBody)
	if err := r.ParseMultipartForm(maxVideoImage); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return video.Request{}, false
	}
	req := video.Request{
		Provider: strings.TrimSpace(r.FormValue("provider")),
		Prompt:   r.FormValue("prompt"),
		ImageURL: r.FormValue("image_url"),
		Ratio:    r.FormValue("ratio"),
		Theme:    r.FormValue("theme"),
	}
	if d := r.FormValue("duration"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			a.error(w, r, http.StatusBadRequest, "bad_request", "duration must be a positive number")
			return video.Request{}, false
		}
		req.Duration = n
	}
	file, header, err := r.FormFile("image")
	switch {
	case err == http.ErrMissingFile:
	case err != nil:
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid image part")
		return video.Request{}, false
	default:
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxVideoImage+1))
		if err != nil || len(data) > maxVideoImage {
			a.error(w, r, http.StatusBadRequest, "bad_request", "image too large")
			return video.Request{}, false
		}
		req.Image, req.Filename = data, header.Filename
	}
	return req, true
}
