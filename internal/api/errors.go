package api

import (
	"errors"
	"net/http"

	"github.com/extrace/notify/internal/notification"
	"github.com/extrace/notify/internal/pkg/httputil"
	"github.com/extrace/notify/internal/scheduler"
	"github.com/extrace/notify/internal/service/preferences"
)

// respondError maps service errors onto status codes. Client errors echo the
// error text; anything else is logged and answered with publicMsg.
func respondError(w http.ResponseWriter, err error, publicMsg string) {
	switch {
	case errors.Is(err, preferences.ErrNotFound),
		errors.Is(err, notification.ErrNotFound),
		errors.Is(err, scheduler.ErrUnknownTrigger):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, preferences.ErrInvalid),
		errors.Is(err, preferences.ErrUnknownClass):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err, publicMsg)
	}
}
