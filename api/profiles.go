package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jacentio/salestrack/entity"
)

type updateMeRequest struct {
	DisplayName string `json:"displayName" validate:"required,max=100"`
}

type preferencesRequest struct {
	Preferences string `json:"preferences"`
}

type profileRequest struct {
	SellerName string `json:"sellerName" validate:"required,max=100"`
}

type shareRequest struct {
	GranteeAccountID string              `json:"granteeAccountId" validate:"required"`
	Permissions      []entity.Permission `json:"permissions" validate:"required,min=1,dive,oneof=READ WRITE"`
}

type permissionsRequest struct {
	Permissions []entity.Permission `json:"permissions" validate:"required,min=1,dive,oneof=READ WRITE"`
}

// getMe returns the caller's account, creating it from the token claims on
// first sight.
func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	var email, name string
	if c := claimsFrom(r.Context()); c != nil {
		email, name = c.Email, c.Name
	}
	acct, err := s.svc.EnsureAccount(r.Context(), caller(r), email, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, acct)
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acct, err := s.svc.UpdateAccount(r.Context(), caller(r), req.DisplayName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, acct)
}

func (s *Server) updatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acct, err := s.svc.UpdatePreferences(r.Context(), caller(r), req.Preferences)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, acct)
}

func (s *Server) listMyProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.svc.ListMyProfiles(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, profiles)
}

func (s *Server) listSharedProfiles(w http.ResponseWriter, r *http.Request) {
	shares, err := s.svc.ListSharedProfiles(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, shares)
}

func (s *Server) createProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.CreateProfile(r.Context(), caller(r), req.SellerName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, p)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetProfile(r.Context(), caller(r), chi.URLParam(r, "profileID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.UpdateProfile(r.Context(), caller(r), chi.URLParam(r, "profileID"), req.SellerName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteProfile(r.Context(), caller(r), chi.URLParam(r, "profileID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listProfileShares(w http.ResponseWriter, r *http.Request) {
	shares, err := s.shares.ListProfileShares(r.Context(), caller(r), chi.URLParam(r, "profileID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, shares)
}

func (s *Server) createShare(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sh, err := s.shares.CreateShare(r.Context(), caller(r), chi.URLParam(r, "profileID"), req.GranteeAccountID, req.Permissions)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, sh)
}

func (s *Server) updateShare(w http.ResponseWriter, r *http.Request) {
	var req permissionsRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sh, err := s.shares.UpdateShare(r.Context(), caller(r), chi.URLParam(r, "profileID"), chi.URLParam(r, "granteeID"), req.Permissions)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sh)
}

func (s *Server) revokeShare(w http.ResponseWriter, r *http.Request) {
	if err := s.shares.RevokeShare(r.Context(), caller(r), chi.URLParam(r, "profileID"), chi.URLParam(r, "granteeID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := s.shares.ListInvites(r.Context(), caller(r), chi.URLParam(r, "profileID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, invites)
}

func (s *Server) createInvite(w http.ResponseWriter, r *http.Request) {
	var req permissionsRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	inv, err := s.shares.CreateInvite(r.Context(), caller(r), chi.URLParam(r, "profileID"), req.Permissions)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, inv)
}

func (s *Server) redeemInvite(w http.ResponseWriter, r *http.Request) {
	sh, err := s.shares.RedeemInvite(r.Context(), caller(r), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sh)
}

func (s *Server) deleteInvite(w http.ResponseWriter, r *http.Request) {
	if err := s.shares.DeleteInvite(r.Context(), caller(r), chi.URLParam(r, "code")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
