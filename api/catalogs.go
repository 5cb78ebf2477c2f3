package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/sales"
)

type productRequest struct {
	ID          string `json:"productId"`
	Name        string `json:"productName" validate:"required,max=100"`
	Description string `json:"description"`
	PriceCents  int64  `json:"priceCents" validate:"gte=0,lte=10000000"`
	SortOrder   int    `json:"sortOrder"`
}

type catalogRequest struct {
	Name     string           `json:"catalogName" validate:"required,max=100"`
	IsPublic bool             `json:"isPublic"`
	Products []productRequest `json:"products" validate:"dive"`
}

func (req catalogRequest) input() sales.CatalogInput {
	products := make([]entity.Product, len(req.Products))
	for i, p := range req.Products {
		products[i] = entity.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			PriceCents:  p.PriceCents,
			SortOrder:   p.SortOrder,
		}
	}
	return sales.CatalogInput{Name: req.Name, IsPublic: req.IsPublic, Products: products}
}

type paymentMethodRequest struct {
	Name      string `json:"name" validate:"required,max=50"`
	QRPayload string `json:"qrPayload"`
}

type paymentMethodUpdateRequest struct {
	Name      *string `json:"name" validate:"omitnil,min=1,max=50"`
	QRPayload *string `json:"qrPayload"`
}

func (s *Server) listPublicCatalogs(w http.ResponseWriter, r *http.Request) {
	catalogs, err := s.svc.ListPublicCatalogs(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, catalogs)
}

func (s *Server) listMyCatalogs(w http.ResponseWriter, r *http.Request) {
	catalogs, err := s.svc.ListMyCatalogs(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, catalogs)
}

func (s *Server) createCatalog(w http.ResponseWriter, r *http.Request) {
	var req catalogRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cat, err := s.svc.CreateCatalog(r.Context(), caller(r), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, cat)
}

func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := s.svc.GetCatalog(r.Context(), caller(r), chi.URLParam(r, "catalogID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, cat)
}

func (s *Server) updateCatalog(w http.ResponseWriter, r *http.Request) {
	var req catalogRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cat, err := s.svc.UpdateCatalog(r.Context(), caller(r), chi.URLParam(r, "catalogID"), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, cat)
}

func (s *Server) deleteCatalog(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteCatalog(r.Context(), caller(r), chi.URLParam(r, "catalogID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := s.svc.ListPaymentMethods(r.Context(), caller(r), chi.URLParam(r, "profileID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, methods)
}

func (s *Server) createPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.svc.CreatePaymentMethod(r.Context(), caller(r), chi.URLParam(r, "profileID"), req.Name, req.QRPayload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, m)
}

func (s *Server) updatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodUpdateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.svc.UpdatePaymentMethod(r.Context(), caller(r), chi.URLParam(r, "profileID"), chi.URLParam(r, "name"),
		sales.PaymentMethodUpdate(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, m)
}

func (s *Server) deletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeletePaymentMethod(r.Context(), caller(r), chi.URLParam(r, "profileID"), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
