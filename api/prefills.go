package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/prefill"
)

type signatureQuery struct {
	UnitType   string `json:"unitType" validate:"required"`
	UnitNumber int    `json:"unitNumber" validate:"required,gte=1"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	SeasonName string `json:"seasonName" validate:"required"`
	SeasonYear int    `json:"seasonYear" validate:"required,gte=1900"`
}

func (q signatureQuery) signature() entity.Signature {
	return entity.Signature{
		UnitSignature: entity.UnitSignature{UnitType: q.UnitType, UnitNumber: q.UnitNumber, City: q.City, State: q.State},
		SeasonName:    q.SeasonName,
		SeasonYear:    q.SeasonYear,
	}
}

type prefillRequest struct {
	signatureQuery
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	CatalogID   string     `json:"catalogId" validate:"required"`
	Message     string     `json:"message" validate:"max=300"`
	Description string     `json:"description"`
}

type prefillUpdateRequest struct {
	Message     *string `json:"message" validate:"omitnil,max=300"`
	Description *string `json:"description"`
}

// findPrefillMatches reads the six signature fields from the query string.
func (s *Server) findPrefillMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	atoi := func(name string) (int, error) {
		v := q.Get(name)
		if v == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, errs.Validation("%s must be a number", name)
		}
		return n, nil
	}
	unitNumber, err := atoi("unitNumber")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	seasonYear, err := atoi("seasonYear")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sq := signatureQuery{
		UnitType:   q.Get("unitType"),
		UnitNumber: unitNumber,
		City:       q.Get("city"),
		State:      q.Get("state"),
		SeasonName: q.Get("seasonName"),
		SeasonYear: seasonYear,
	}
	if err := s.check(&sq); err != nil {
		s.writeError(w, r, err)
		return
	}

	matches, err := s.prefills.FindMatches(r.Context(), sq.signature())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, matches)
}

// resolvePrefill answers 404 for unknown and inactive codes alike.
func (s *Server) resolvePrefill(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	p, err := s.prefills.ResolveCode(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if p == nil {
		s.writeError(w, r, errs.NotFound("prefill %s not found", code))
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) listMyPrefills(w http.ResponseWriter, r *http.Request) {
	prefills, err := s.prefills.ListMine(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, prefills)
}

func (s *Server) createPrefill(w http.ResponseWriter, r *http.Request) {
	var req prefillRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.prefills.Create(r.Context(), caller(r), prefill.CreateInput{
		Signature:   req.signature(),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		CatalogID:   req.CatalogID,
		Message:     req.Message,
		Description: req.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, p)
}

func (s *Server) getPrefill(w http.ResponseWriter, r *http.Request) {
	p, err := s.prefills.Get(r.Context(), caller(r), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) updatePrefill(w http.ResponseWriter, r *http.Request) {
	var req prefillUpdateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.prefills.Update(r.Context(), caller(r), chi.URLParam(r, "code"), prefill.UpdateInput(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) deactivatePrefill(w http.ResponseWriter, r *http.Request) {
	p, err := s.prefills.Deactivate(r.Context(), caller(r), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}
