package http

import (
	"net/http"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/services"
)

// settingsView is the editable part of the profile.
type settingsView struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Currency       string `json:"currency"`
	CurrencySymbol string `json:"currencySymbol"`
	Timezone       string `json:"timezone"`
	Country        string `json:"country"`
}

func newSettingsView(p core.UserProfile) settingsView {
	return settingsView{
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Currency:       p.Currency,
		CurrencySymbol: p.CurrencySymbol,
		Timezone:       p.Timezone,
		Country:        p.Country,
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	p, err := s.svc.Accounts.Profile(ctx, principal(r).UserID)
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentAuth, applog.OpRead)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsView(p))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req services.SettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	p, err := s.svc.Accounts.UpdateSettings(ctx, principal(r).UserID, req)
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentAuth, applog.OpUpdate)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsView(p))
}
