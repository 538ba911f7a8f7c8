package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-floor/apiclient"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/reconciler"
	"github.com/yeremiapane/restaurant-floor/utils"
)

// respondFailure maps an error from the floor or the backend onto the
// console's envelope.
func respondFailure(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, apiclient.ErrSessionExpired):
		utils.RespondMessage(c, http.StatusUnauthorized, apiclient.MessageOf(err))
		return
	case errors.Is(err, reconciler.ErrInvalidCapacity),
		errors.Is(err, reconciler.ErrUnknownStatus),
		errors.Is(err, models.ErrInvalidAccount):
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	case errors.Is(err, reconciler.ErrReservationOverlap),
		errors.Is(err, models.ErrIllegalTransition):
		utils.RespondError(c, http.StatusConflict, err)
		return
	case errors.Is(err, reconciler.ErrNoBranch):
		utils.RespondError(c, http.StatusPreconditionFailed, err)
		return
	}

	status := apiclient.StatusOf(err)
	if status < http.StatusBadRequest {
		status = http.StatusBadGateway
	}
	utils.ErrorLogger.Errorf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	utils.RespondMessage(c, status, apiclient.MessageOf(err))
}
