package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/sales"
)

type campaignRequest struct {
	Name      string     `json:"name" validate:"required,max=100"`
	Year      int        `json:"year" validate:"required,gte=1900,lte=9999"`
	StartDate time.Time  `json:"startDate" validate:"required"`
	EndDate   *time.Time `json:"endDate"`
	entity.UnitSignature
	CatalogID string `json:"catalogId" validate:"required"`
}

type campaignUpdateRequest struct {
	Name      *string    `json:"name" validate:"omitnil,min=1,max=100"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
	CatalogID *string    `json:"catalogId" validate:"omitnil,min=1"`
}

type fromPrefillRequest struct {
	PrefillCode string `json:"prefillCode" validate:"required"`
	Name        string `json:"name" validate:"max=100"`
}

type lineItemRequest struct {
	ProductID      string `json:"productId" validate:"required"`
	ProductName    string `json:"productName"`
	Quantity       int    `json:"quantity" validate:"gte=1,lte=999"`
	UnitPriceCents int64  `json:"unitPriceCents" validate:"gte=0,lte=10000000"`
}

type orderRequest struct {
	entity.Customer
	LineItems     []lineItemRequest `json:"lineItems" validate:"required,min=1,dive"`
	PaymentMethod string            `json:"paymentMethod" validate:"required"`
	OrderDate     *time.Time        `json:"orderDate"`
	Notes         string            `json:"notes"`
}

func (req orderRequest) input(campaignID string) sales.OrderInput {
	lines := make([]sales.LineItemInput, len(req.LineItems))
	for i, l := range req.LineItems {
		lines[i] = sales.LineItemInput(l)
	}
	return sales.OrderInput{
		CampaignID:    campaignID,
		Customer:      req.Customer,
		LineItems:     lines,
		PaymentMethod: req.PaymentMethod,
		OrderDate:     req.OrderDate,
		Notes:         req.Notes,
	}
}

func (s *Server) listCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.svc.ListCampaigns(r.Context(), caller(r), chi.URLParam(r, "profileID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, campaigns)
}

func (s *Server) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.svc.CreateCampaign(r.Context(), caller(r), sales.CampaignInput{
		ProfileID:     chi.URLParam(r, "profileID"),
		Name:          req.Name,
		Year:          req.Year,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		UnitSignature: req.UnitSignature,
		CatalogID:     req.CatalogID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, c)
}

func (s *Server) createCampaignFromPrefill(w http.ResponseWriter, r *http.Request) {
	var req fromPrefillRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.svc.CreateCampaignFromPrefill(r.Context(), caller(r), chi.URLParam(r, "profileID"), req.PrefillCode, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, c)
}

func (s *Server) getCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.GetCampaign(r.Context(), caller(r), chi.URLParam(r, "campaignID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (s *Server) getCampaignByShareCode(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.GetCampaignByShareCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (s *Server) updateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignUpdateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.svc.UpdateCampaign(r.Context(), caller(r), chi.URLParam(r, "campaignID"), sales.CampaignUpdate(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (s *Server) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteCampaign(r.Context(), caller(r), chi.URLParam(r, "campaignID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.ListOrders(r.Context(), caller(r), chi.URLParam(r, "campaignID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orders)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.svc.CreateOrder(r.Context(), caller(r), req.input(chi.URLParam(r, "campaignID")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, o)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.svc.GetOrder(r.Context(), caller(r), chi.URLParam(r, "orderID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.svc.UpdateOrder(r.Context(), caller(r), chi.URLParam(r, "orderID"), req.input(""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteOrder(r.Context(), caller(r), chi.URLParam(r, "orderID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
