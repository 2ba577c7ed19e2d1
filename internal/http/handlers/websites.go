package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"studio/internal/website"
)

func (a *App) WebsitesGenerate(w http.ResponseWriter, r *http.Request) {
	var brief website.Brief
	if !a.decode(w, r, &brief) {
		return
	}
	snap, err := a.Websites.Start(r.Context(), a.currentUserID(r), brief)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, snap)
}

func (a *App) WebsiteGet(w http.ResponseWriter, r *http.Request) {
	site, err := a.Websites.Site(a.currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, site)
}

// WebsiteExport downloads the finished site as a zip archive.
func (a *App) WebsiteExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := a.Websites.Export(a.currentUserID(r), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.zip"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
