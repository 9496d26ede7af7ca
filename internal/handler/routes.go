package handler

import "net/http"

// Register mounts the API routes on mux.
func (d *Dependencies) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/exemptions", d.HandleExemptions)
	mux.HandleFunc("POST /api/tax/compute", d.HandleComputeTax)

	mux.HandleFunc("GET /api/calculator", d.HandleCalculator)
	mux.HandleFunc("POST /api/calculator/entries", d.HandleSubmitEntry)
	mux.HandleFunc("POST /api/calculator/entries/{id}/edit", d.HandleBeginEdit)
	mux.HandleFunc("DELETE /api/calculator/entries/{id}", d.HandleDeleteEntry)
	mux.HandleFunc("POST /api/calculator/cancel", d.HandleCancelEdit)
	mux.HandleFunc("POST /api/calculator/save", d.HandleSave)
	mux.HandleFunc("POST /api/calculator/reopen", d.HandleReopen)
	mux.HandleFunc("PUT /api/calculator/exemption", d.HandleChangeExemption)
	mux.HandleFunc("GET /api/calculator/records", d.HandleRecords)

	mux.HandleFunc("GET /api/profile", d.HandleProfile)
	mux.HandleFunc("POST /api/profile", d.HandleProfile)
	mux.HandleFunc("PUT /api/profile/note", d.HandleProfileNote)
	mux.HandleFunc("GET /api/status", d.HandleStatus)

	mux.HandleFunc("POST /api/upload", d.HandleUpload)
}
