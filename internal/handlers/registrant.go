package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/listafacil/apiserver/internal/services"
	"github.com/listafacil/apiserver/internal/store"
	"github.com/listafacil/apiserver/pkg/validator"
	"github.com/listafacil/apiserver/types"
)

// RegistrantHandler provides HTTP handlers for name lists and check-ins.
type RegistrantHandler struct {
	registrantService *services.RegistrantService
}

// NewRegistrantHandler constructs a handler with the provided service.
func NewRegistrantHandler(registrantService *services.RegistrantService) *RegistrantHandler {
	return &RegistrantHandler{registrantService: registrantService}
}

// NameListRouter registers name-list routes on the given router. submitLimit
// is an extra rate-limit middleware applied only to the public bulk
// submission endpoint; pass nil to skip it.
func NameListRouter(
	r chi.Router,
	registrantService *services.RegistrantService,
	auth func(http.Handler) http.Handler,
	submitLimit func(http.Handler) http.Handler,
) {
	handler := NewRegistrantHandler(registrantService)

	if submitLimit != nil {
		r.With(submitLimit).Post("/submit", handler.Submit)
	} else {
		r.Post("/submit", handler.Submit)
	}

	r.Route("/event/{eventID}", func(r chi.Router) {
		r.With(auth, RequireStaff).Get("/", handler.ListByEvent)
		r.With(auth, RequireStaff).Get("/search", handler.Search)
		r.With(auth, RequireStaff).Post("/add", handler.AddSingle)
	})
	r.With(auth, RequireStaff).Put("/{registrantID}/checkin", handler.Checkin)
}

type SubmitNamesRequest struct {
	EventID int      `json:"event_id" validate:"required,gt=0"`
	Names   []string `json:"names" validate:"required,min=1"`
	Emails  []string `json:"emails"`
	Phones  []string `json:"phones"`
}

// Submit is the public bulk registration endpoint. The request fails as a
// whole on a missing/inactive event or a capacity overflow; individual names
// fail independently and are reported in the errors array while the request
// still succeeds.
func (h *RegistrantHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitNamesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validator.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, "event id and a non-empty name list are required")
		return
	}

	result, err := h.registrantService.SubmitNames(r.Context(), req.EventID, req.Names, req.Emails, req.Phones)
	if err != nil {
		var capErr services.CapacityError
		switch {
		case errors.Is(err, services.ErrEventNotActive):
			writeError(w, http.StatusNotFound, "event not found or not active")
		case errors.As(err, &capErr):
			writeError(w, http.StatusBadRequest, capErr.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeData(w, http.StatusCreated, result, result.Summary())
}

// ListByEvent returns an event's name list with optional status and search
// filters.
func (h *RegistrantHandler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	status := types.CheckinStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be pending, present, or absent")
		return
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	registrants, err := h.registrantService.ListByEvent(r.Context(), eventID, status, search)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list names")
		return
	}
	writeData(w, http.StatusOK, registrants, "name list fetched")
}

// Search finds registrants by name fragment for the quick check-in lookup.
func (h *RegistrantHandler) Search(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name query is required")
		return
	}

	registrants, err := h.registrantService.Search(r.Context(), eventID, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search names")
		return
	}
	writeData(w, http.StatusOK, registrants, "search complete")
}

type AddNameRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// AddSingle registers one name on behalf of front-desk staff.
func (h *RegistrantHandler) AddSingle(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req AddNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := h.registrantService.AddSingle(r.Context(), eventID, req.Name, req.Email, req.Phone)
	if err != nil {
		var capErr services.CapacityError
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "event not found")
		case errors.Is(err, services.ErrDuplicateName):
			writeError(w, http.StatusBadRequest, "name already registered for this event")
		case errors.As(err, &capErr):
			writeError(w, http.StatusBadRequest, "event capacity reached")
		default:
			writeError(w, http.StatusInternalServerError, "failed to add name")
		}
		return
	}
	writeData(w, http.StatusCreated, created, "name added")
}

type CheckinRequest struct {
	Status types.CheckinStatus `json:"status" validate:"required"`
	Notes  *string             `json:"notes"`
}

// Checkin updates a registrant's attendance state.
func (h *RegistrantHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id, err := parseIDParam(r, "registrantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid registrant id")
		return
	}

	var req CheckinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be pending, present, or absent")
		return
	}

	updated, err := h.registrantService.Checkin(r.Context(), id, req.Status, req.Notes, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "registrant not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update check-in")
		return
	}
	writeData(w, http.StatusOK, updated, "check-in "+string(req.Status)+" recorded")
}
