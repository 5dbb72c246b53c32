package http

import (
	"net/http"

	"categorizer/internal/log"
	"categorizer/internal/views"
)

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := s.svc.Settings.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(views.Setting(setting)).Write(w)
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(w, r)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}

	// A present value of the wrong JSON type is passed through as an
	// unparseable string so it fails like any malformed amount.
	var raw *string
	if v, ok := body["value"]; ok {
		text, _ := amountText(v)
		raw = &text
	}

	setting, err := s.svc.Settings.Set(r.Context(), r.PathValue("key"), raw)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(views.Setting(setting)).Write(w)
}
