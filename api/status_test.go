package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/factoring"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{factoring.ErrInvoiceNotFound, http.StatusNotFound},
		{factoring.ErrNoRoute, http.StatusNotFound},
		{factoring.ErrUnauthorized, http.StatusForbidden},
		{factoring.ErrInvalidSignature, http.StatusForbidden},
		{factoring.ValidationError{Field: "amount", Message: "must be positive"}, http.StatusUnprocessableEntity},
		{factoring.ErrExpired, http.StatusGone},
		{factoring.ErrSlippageTooHigh, http.StatusConflict},
		{factoring.ErrInsufficientFunds, http.StatusPaymentRequired},
		{factoring.ErrInsufficientShares, http.StatusPaymentRequired},
		{factoring.ErrAlreadyListed, http.StatusConflict},
		{factoring.ErrAggregatorDisabled, http.StatusConflict},
		{&factoring.SettlementError{Step: factoring.StepPaySeller, Err: errors.New("rail down")}, http.StatusBadGateway},
		{fmt.Errorf("%w: payments", factoring.ErrNotConfigured), http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}
