package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/the-onion-land/onionidd/iddb"
)

type descriptorIDResponse struct {
	Replica   int    `json:"replica"`
	Deviation int64  `json:"deviation"`
	ID        string `json:"id"`
}

type serviceResponse struct {
	Address       string                 `json:"address"`
	Version       int                    `json:"version"`
	PermanentID   string                 `json:"permanentId,omitempty"`
	TimePeriod    int64                  `json:"timePeriod,omitempty"`
	DescriptorIDs []descriptorIDResponse `json:"descriptorIds,omitempty"`
	ValidUntil    *time.Time             `json:"validUntil,omitempty"`
}

func serviceToResponse(service *iddb.Service) *serviceResponse {
	res := &serviceResponse{
		Address:     service.Address,
		Version:     service.Version,
		PermanentID: service.PermanentID,
		TimePeriod:  service.TimePeriod,
	}

	for _, id := range service.DescriptorIDs {
		res.DescriptorIDs = append(res.DescriptorIDs, descriptorIDResponse{
			Replica:   id.Replica,
			Deviation: id.Deviation,
			ID:        id.ID,
		})
	}

	if !service.ValidUntil.IsZero() {
		validUntil := service.ValidUntil
		res.ValidUntil = &validUntil
	}

	return res
}

func (a *Api) handleGetServices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := a.tracker.Services()
		if err != nil {
			a.log.Errorf("Could not list services: %v", err)
			a.jsonError(w, "Could not list services", http.StatusInternalServerError)
			return
		}

		res := []*serviceResponse{}
		for _, service := range services {
			res = append(res, serviceToResponse(service))
		}

		a.jsonResponse(w, res, http.StatusOK)
	}
}

func (a *Api) handleGetService() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := mux.Vars(r)["address"]

		services, err := a.tracker.Services()
		if err != nil {
			a.log.Errorf("Could not list services: %v", err)
			a.jsonError(w, "Could not list services", http.StatusInternalServerError)
			return
		}

		for _, service := range services {
			if service.Address == address {
				a.jsonResponse(w, serviceToResponse(service), http.StatusOK)
				return
			}
		}

		a.jsonError(w, fmt.Sprintf("No service with address %s found", address), http.StatusNotFound)
	}
}
