// Package controllers implements the route handlers of the HTTP surface.
// Handlers translate between the JSON wire shapes and the payments package
// and map its error taxonomy onto HTTP status codes.
package controllers

import (
	"net/http"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/JasonDocton/rad-crowdfunding/httpserverutils"
	"github.com/JasonDocton/rad-crowdfunding/payments"
)

// Context bundles what the handlers need. It is built once at startup.
type Context struct {
	DB      *gorm.DB
	Manager *payments.Manager
	Oracle  payments.RateSource
}

// handlerErrorFromPayments maps a payments error onto an HTTP handler error.
func handlerErrorFromPayments(err error) *httpserverutils.HandlerError {
	var pErr payments.Error
	if !errors.As(err, &pErr) {
		return httpserverutils.NewInternalServerHandlerError(err.Error())
	}

	code := http.StatusInternalServerError
	switch pErr.ErrorCode {
	case payments.ErrValidation, payments.ErrUnderpayment:
		code = http.StatusUnprocessableEntity
	case payments.ErrRateLimited:
		code = http.StatusTooManyRequests
	case payments.ErrNotOwned:
		code = http.StatusForbidden
	case payments.ErrExpired:
		code = http.StatusGone
	case payments.ErrOracleUnavailable:
		code = http.StatusServiceUnavailable
	}
	return httpserverutils.NewHandlerError(code, pErr.Description)
}
