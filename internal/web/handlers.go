package web

import (
	"encoding/json"
	"io/fs"
	"net/http"

	"github.com/cjeanneret/RoverGo/internal/net/wifi"
	"github.com/cjeanneret/RoverGo/internal/store"
)

// CredentialStore is the slice of the store the handlers write through.
type CredentialStore interface {
	SaveNetwork(ssid, password string) error
	SaveSecret(secret string) error
}

// WifiManager lists visible networks for the setup page.
type WifiManager interface {
	Scan() ([]wifi.Network, error)
}

// Handlers holds dependencies for the provisioning endpoints.
type Handlers struct {
	creds    CredentialStore
	wifi     WifiManager
	staticFS fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(creds CredentialStore, wm WifiManager, staticFS fs.FS) *Handlers {
	return &Handlers{
		creds:    creds,
		wifi:     wm,
		staticFS: staticFS,
	}
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// ServeIndex serves the setup page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleScan returns the visible networks as JSON.
func (h *Handlers) HandleScan(w http.ResponseWriter, r *http.Request) {
	networks, err := h.wifi.Scan()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, result{Success: false, Message: "Scan failed"})
		return
	}
	if networks == nil {
		networks = []wifi.Network{}
	}
	writeJSON(w, http.StatusOK, map[string][]wifi.Network{"networks": networks})
}

// HandleConnect saves new network credentials. They take effect on the next
// boot; restarting the service is the operator's move.
func (h *Handlers) HandleConnect(w http.ResponseWriter, r *http.Request) {
	ssid := r.FormValue("ssid")
	password := r.FormValue("password")
	if ssid == "" {
		writeJSON(w, http.StatusBadRequest, result{Success: false, Message: "Missing parameters"})
		return
	}
	if err := h.creds.SaveNetwork(ssid, password); err != nil {
		writeJSON(w, http.StatusInternalServerError, result{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result{Success: true, Message: "Saved"})
}

// HandleSetPassword updates the control secret.
func (h *Handlers) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	password := r.FormValue("password")
	if password == "" {
		writeJSON(w, http.StatusBadRequest, result{Success: false, Message: "Missing"})
		return
	}
	if len(password) < store.MinSecretLen {
		writeJSON(w, http.StatusBadRequest, result{Success: false, Message: "Too short"})
		return
	}
	if err := h.creds.SaveSecret(password); err != nil {
		writeJSON(w, http.StatusInternalServerError, result{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result{Success: true})
}
