package httpapi

import (
	"errors"
	"net"
	"net/http"

	appAuth "github.com/session-hub/session-hub/internal/application/auth"
	appToken "github.com/session-hub/session-hub/internal/application/token"
	"github.com/session-hub/session-hub/internal/domain/session"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	User         interface{} `json:"user"`
	SessionID    string      `json:"session_id"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	ip, device := clientInfo(r)
	res, err := s.authSvc.Register(r.Context(), req.Username, req.Password, ip, device, session.ChannelREST)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, toAuthResponse(res))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	ip, device := clientInfo(r)
	res, err := s.authSvc.Login(r.Context(), req.Username, req.Password, ip, device, session.ChannelREST)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toAuthResponse(res))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	pair, err := s.authSvc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, appToken.ErrReuseDetected):
			respondError(w, http.StatusForbidden, "TOKEN_REUSE", err.Error())
		case errors.Is(err, appToken.ErrExpired):
			respondError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", err.Error())
		default:
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, pair)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	if u == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth")
		return
	}
	if err := s.authSvc.Logout(r.Context(), u.UserID, u.CorrelationID); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "OK"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	if u == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth")
		return
	}
	sess, err := s.sessionSvc.GetByCorrelationID(r.Context(), u.CorrelationID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": u.UserID,
		"role":    u.Role,
		"session": sess,
	})
}

func toAuthResponse(res *appAuth.LoginResult) authResponse {
	return authResponse{
		User:         res.User,
		SessionID:    res.Session.ID.String(),
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresIn:    res.Tokens.ExpiresIn,
	}
}

func clientInfo(r *http.Request) (ip *string, device *string) {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		addr = host
	}
	if addr != "" {
		ip = &addr
	}
	if ua := r.UserAgent(); ua != "" {
		device = &ua
	}
	return ip, device
}
