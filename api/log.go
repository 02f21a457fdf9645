package api

import (
	"net/http"
)

type getLogResponse struct {
	Entries []string `json:"entries"`
}

func (a *Api) handleGetLog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := &getLogResponse{Entries: []string{}}

		if a.idLog != nil {
			res.Entries = a.idLog.Entries()
		}

		a.jsonResponse(w, res, http.StatusOK)
	}
}
