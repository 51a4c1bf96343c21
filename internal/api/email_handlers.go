package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/extrace/notify/internal/domain"
	"github.com/extrace/notify/internal/pkg/httputil"
	"github.com/extrace/notify/internal/service/preferences"
)

// GetPreferences returns the caller's preferences, creating defaults on
// first access.
//
//	GET /api/email/preferences
func (h *Handlers) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.prefs.GetOrCreate(r.Context(), userID(r))
	if err != nil {
		respondError(w, err, "Failed to fetch email preferences")
		return
	}
	httputil.OK(w, "", prefs)
}

// UpdatePreferences merges the supplied groups into the caller's preferences.
//
//	PUT /api/email/preferences
func (h *Handlers) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var u preferences.Update
	if !httputil.Decode(w, r, &u) {
		return
	}
	uid := userID(r)
	prefs, err := h.prefs.Update(r.Context(), uid, u)
	if err != nil {
		respondError(w, err, "Failed to update email preferences")
		return
	}
	if tn := u.TransactionNotifications; tn != nil && tn.Frequency != nil {
		h.flushAbandonedDigests(uid, *tn.Frequency)
	}
	httputil.OK(w, "Email preferences updated successfully", prefs)
}

// flushAbandonedDigests sends whatever was queued under a digest frequency
// the user just left; the scheduled flush only visits current subscribers.
func (h *Handlers) flushAbandonedDigests(uid string, now domain.Frequency) {
	for _, freq := range []domain.Frequency{domain.FrequencyDaily, domain.FrequencyWeekly} {
		if freq == now {
			continue
		}
		h.dispatcher.Go("flush-digest", func(ctx context.Context) error {
			return h.notifier.FlushDigest(ctx, uid, freq)
		})
	}
}

type unsubscribeRequest struct {
	Token string `json:"token"`
}

func decodeToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req unsubscribeRequest
	if !httputil.Decode(w, r, &req) {
		return "", false
	}
	if strings.TrimSpace(req.Token) == "" {
		httputil.BadRequest(w, "Unsubscribe token is required")
		return "", false
	}
	return req.Token, true
}

// UnsubscribeAll disables every optional email for the token's owner.
//
//	POST /api/email/unsubscribe
func (h *Handlers) UnsubscribeAll(w http.ResponseWriter, r *http.Request) {
	token, ok := decodeToken(w, r)
	if !ok {
		return
	}
	if _, err := h.prefs.UnsubscribeAll(r.Context(), token); err != nil {
		if errors.Is(err, preferences.ErrNotFound) {
			httputil.NotFound(w, "Invalid unsubscribe token")
			return
		}
		respondError(w, err, "Failed to unsubscribe")
		return
	}
	httputil.OK(w, "Successfully unsubscribed from all email notifications", nil)
}

// UnsubscribeClass disables one email class for the token's owner.
//
//	POST /api/email/unsubscribe/{type}
func (h *Handlers) UnsubscribeClass(w http.ResponseWriter, r *http.Request) {
	class := preferences.Class(chi.URLParam(r, "type"))
	token, ok := decodeToken(w, r)
	if !ok {
		return
	}
	if _, err := h.prefs.UnsubscribeClass(r.Context(), token, class); err != nil {
		switch {
		case errors.Is(err, preferences.ErrUnknownClass):
			httputil.BadRequest(w, "Invalid email type")
		case errors.Is(err, preferences.ErrNotFound):
			httputil.NotFound(w, "Invalid unsubscribe token")
		default:
			respondError(w, err, "Failed to unsubscribe")
		}
		return
	}
	httputil.OK(w, fmt.Sprintf("Successfully unsubscribed from %s emails", class), nil)
}

// GetStats returns the caller's delivery health.
//
//	GET /api/email/stats
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.prefs.DeliveryStats(r.Context(), userID(r))
	if err != nil {
		respondError(w, err, "Failed to fetch email statistics")
		return
	}
	httputil.OK(w, "", stats)
}

// ResetBlacklist clears the caller's failure counter and blacklist flag.
//
//	POST /api/email/reset-blacklist
func (h *Handlers) ResetBlacklist(w http.ResponseWriter, r *http.Request) {
	stats, err := h.prefs.ResetBlacklist(r.Context(), userID(r))
	if err != nil {
		if errors.Is(err, preferences.ErrNotFound) {
			httputil.NotFound(w, "Email preferences not found")
			return
		}
		respondError(w, err, "Failed to reset blacklist status")
		return
	}
	httputil.OK(w, "Email blacklist status reset successfully", stats)
}

type testEmailRequest struct {
	EmailType string `json:"emailType"`
}

// SendTestEmail sends one email of the requested type to the caller,
// synchronously.
//
//	POST /api/email/test
func (h *Handlers) SendTestEmail(w http.ResponseWriter, r *http.Request) {
	var req testEmailRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	ctx, uid := r.Context(), userID(r)

	var err error
	switch req.EmailType {
	case "welcome":
		err = h.notifier.SendWelcomeEmail(ctx, uid)
	case "weekly-report":
		err = h.notifier.GenerateWeeklyReport(ctx, uid)
	case "monthly-report":
		now := h.now()
		err = h.notifier.GenerateMonthlyReport(ctx, uid, now.Month(), now.Year())
	case "personalized-tips":
		err = h.notifier.SendPersonalizedTips(ctx, uid)
	default:
		httputil.BadRequest(w, "Invalid email type")
		return
	}
	if err != nil {
		respondError(w, err, "Failed to send test email")
		return
	}
	httputil.OK(w, fmt.Sprintf("Test %s email sent successfully", req.EmailType), nil)
}
