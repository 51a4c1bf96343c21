package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/extrace/notify/internal/pkg/httputil"
)

type taskAccepted struct {
	TaskID string `json:"taskId"`
}

// TransactionCreated queues notification processing for a new transaction.
// The caller gets 202 before anything is sent.
//
//	POST /api/events/transactions/{id}
func (h *Handlers) TransactionCreated(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")
	id := h.dispatcher.Go("transaction-created", func(ctx context.Context) error {
		return h.notifier.OnTransactionCreated(ctx, txID)
	})
	httputil.Accepted(w, "Transaction notification queued", taskAccepted{TaskID: id})
}

type budgetCheckRequest struct {
	Category string `json:"category"`
}

// BudgetCheck queues a budget evaluation for one of the caller's categories.
//
//	POST /api/events/budget-check
func (h *Handlers) BudgetCheck(w http.ResponseWriter, r *http.Request) {
	var req budgetCheckRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		httputil.BadRequest(w, "category is required")
		return
	}
	uid := userID(r)
	id := h.dispatcher.Go("budget-check", func(ctx context.Context) error {
		return h.notifier.CheckBudgetAlert(ctx, uid, category)
	})
	httputil.Accepted(w, "Budget check queued", taskAccepted{TaskID: id})
}
