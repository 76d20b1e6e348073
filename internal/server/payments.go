package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/railzwaylabs/cargoledger/internal/payment/domain"
)

// @Summary      Record Payment
// @Description  Record a payment. Linking it to an invoice marks that invoice paid.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body paymentdomain.Request true "Payment"
// @Success      201  {object}  DataResponse
// @Router       /payments [post]
func (s *Server) CreatePayment(c *gin.Context) {
	var req paymentdomain.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondStatus(c, http.StatusCreated, resp)
}

// @Summary      Get Payment
// @Tags         payments
// @Produce      json
// @Param        id  path  string  true  "Payment ID"
// @Success      200  {object}  DataResponse
// @Router       /payments/{id} [get]
func (s *Server) GetPayment(c *gin.Context) {
	resp, err := s.paymentSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

// @Summary      Update Payment
// @Description  Replace a payment. Moving the link re-derives the paid flag of both invoices.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id       path  string                 true  "Payment ID"
// @Param        request  body  paymentdomain.Request  true  "Payment"
// @Success      200  {object}  DataResponse
// @Router       /payments/{id} [put]
func (s *Server) UpdatePayment(c *gin.Context) {
	var req paymentdomain.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.Update(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

// @Summary      Delete Payment
// @Tags         payments
// @Param        id  path  string  true  "Payment ID"
// @Success      204
// @Router       /payments/{id} [delete]
func (s *Server) DeletePayment(c *gin.Context) {
	if err := s.paymentSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
