package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/corebrain/go-session-service/backend"
	"github.com/corebrain/go-session-service/entitlement"
	"github.com/corebrain/go-session-service/session"
)

type subscriptionResponse struct {
	Tier     string           `json:"tier"`
	Status   string           `json:"status,omitempty"`
	Products []string         `json:"products"`
	Usage    map[string]int64 `json:"usage,omitempty"`
	Plan     entitlement.Plan `json:"plan"`
}

func (s *Server) subscriptionView(sessionID string, record *entitlement.Record) subscriptionResponse {
	products := make([]string, 0, len(record.Products))
	for product := range record.Products {
		products = append(products, product)
	}
	return subscriptionResponse{
		Tier:     string(record.Tier),
		Status:   record.Status,
		Products: products,
		Usage:    record.Usage,
		Plan:     s.entitlements.GetCurrentPlan(sessionID),
	}
}

// requireServiceSession loads the caller's session for the subscription
// API. The API talks to billing with the service token, so a degraded
// session without one is rejected the same way as an unauthenticated one.
func (s *Server) requireServiceSession(w http.ResponseWriter, r *http.Request) (string, *session.Session, bool) {
	sessionID := s.currentSessionID(r)
	if sessionID == "" {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return "", nil, false
	}
	sess, err := s.sessions.Current(r.Context(), sessionID)
	if err != nil {
		s.logger.Error().Err(err).Msg("session read failed")
		writeJSONError(w, http.StatusInternalServerError, "session lookup failed")
		return "", nil, false
	}
	if !sess.IsAuthenticated() {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return "", nil, false
	}
	if !sess.HasServiceToken(time.Now()) {
		writeJSONError(w, http.StatusUnauthorized, "service token missing, refresh the session")
		return "", nil, false
	}
	return sessionID, sess, true
}

// GetSubscriptionHandler fetches the caller's subscription from billing and
// returns the normalized record with its catalog plan.
func (s *Server) GetSubscriptionHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, sess, ok := s.requireServiceSession(w, r)
		if !ok {
			return
		}
		record := s.entitlements.Fetch(r.Context(), sessionID, sess.ServiceToken, sess.User.ID)
		writeJSON(w, http.StatusOK, s.subscriptionView(sessionID, record))
	}
}

// ChangePlanHandler asks billing for a plan change and returns the
// replacement record billing hands back.
func (s *Server) ChangePlanHandler() func(w http.ResponseWriter, r *http.Request) {
	type changePlanBody struct {
		Tier      string `json:"tier"`
		ProductID string `json:"product_id,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, sess, ok := s.requireServiceSession(w, r)
		if !ok {
			return
		}

		var body changePlanBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Tier == "" {
			writeJSONError(w, http.StatusBadRequest, "tier is required")
			return
		}

		record, err := s.entitlements.ChangePlan(r.Context(), sessionID, sess.ServiceToken, sess.User.ID, entitlement.ParseTier(body.Tier), body.ProductID)
		if err != nil {
			s.logger.Warn().Err(err).Str("tier", body.Tier).Msg("plan change failed")
			writeJSONError(w, http.StatusBadGateway, "plan change failed")
			return
		}
		writeJSON(w, http.StatusOK, s.subscriptionView(sessionID, record))
	}
}

// CancelSubscriptionHandler cancels the caller's subscription.
func (s *Server) CancelSubscriptionHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, sess, ok := s.requireServiceSession(w, r)
		if !ok {
			return
		}
		record, err := s.entitlements.Cancel(r.Context(), sessionID, sess.ServiceToken, sess.User.ID)
		if err != nil {
			s.logger.Warn().Err(err).Msg("subscription cancel failed")
			writeJSONError(w, http.StatusBadGateway, "cancellation failed")
			return
		}
		writeJSON(w, http.StatusOK, s.subscriptionView(sessionID, record))
	}
}

// PaymentHandler forwards a payment to billing. When billing reports the
// payment changed the plan, the entitlement record is refetched so the new
// tier takes effect immediately.
func (s *Server) PaymentHandler() func(w http.ResponseWriter, r *http.Request) {
	type paymentBody struct {
		Tier   string         `json:"tier"`
		Detail map[string]any `json:"detail,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, sess, ok := s.requireServiceSession(w, r)
		if !ok {
			return
		}

		var body paymentBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid payment request")
			return
		}

		result, err := s.entitlements.SubmitPayment(r.Context(), sessionID, sess.ServiceToken, &backend.PaymentRequest{
			UserID: sess.User.ID,
			Tier:   body.Tier,
			Detail: body.Detail,
		})
		if err != nil {
			s.logger.Warn().Err(err).Msg("payment failed")
			writeJSONError(w, http.StatusBadGateway, "payment failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// BillingHistoryHandler lists the caller's billing events.
func (s *Server) BillingHistoryHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		_, sess, ok := s.requireServiceSession(w, r)
		if !ok {
			return
		}
		events, err := s.entitlements.BillingHistory(r.Context(), sess.ServiceToken)
		if err != nil {
			s.logger.Warn().Err(err).Msg("billing history fetch failed")
			writeJSONError(w, http.StatusBadGateway, "billing history unavailable")
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}
