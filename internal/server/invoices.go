package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/railzwaylabs/cargoledger/internal/invoice/domain"
	"github.com/railzwaylabs/cargoledger/pkg/db/pagination"
)

type setPaidRequest struct {
	Paid *bool `json:"paid"`
}

// @Summary      List Invoices
// @Tags         invoices
// @Produce      json
// @Param        customer_id  query  string  false  "Customer ID"
// @Param        fee_type     query  string  false  "Fee type"
// @Param        period       query  string  false  "Billing period YYYY-MM"
// @Param        paid         query  bool    false  "Paid"
// @Param        page_token   query  string  false  "Page Token"
// @Param        page_size    query  int     false  "Page Size"
// @Success      200  {object}  ListResponse
// @Router       /invoices [get]
func (s *Server) ListInvoices(c *gin.Context) {
	s.listInvoices(c, "customer_id", s.invoiceSvc.List)
}

// @Summary      Get Invoice
// @Tags         invoices
// @Produce      json
// @Param        id  path  string  true  "Invoice ID"
// @Success      200  {object}  DataResponse
// @Router       /invoices/{id} [get]
func (s *Server) GetInvoice(c *gin.Context) {
	s.invoiceByID(c, s.invoiceSvc.Get)
}

// @Summary      Recalculate Invoice
// @Description  Rebuild the invoice amount and document from the current waybill fees
// @Tags         invoices
// @Produce      json
// @Param        id  path  string  true  "Invoice ID"
// @Success      200  {object}  DataResponse
// @Router       /invoices/{id}/recalculate [post]
func (s *Server) RecalculateInvoice(c *gin.Context) {
	s.invoiceByID(c, s.invoiceSvc.Recalculate)
}

// @Summary      Delete Invoice
// @Description  Delete the invoice and unlink its payments. Deleting a missing invoice succeeds.
// @Tags         invoices
// @Param        id  path  string  true  "Invoice ID"
// @Success      204
// @Router       /invoices/{id} [delete]
func (s *Server) DeleteInvoice(c *gin.Context) {
	s.deleteInvoice(c, s.invoiceSvc.Delete)
}

// @Summary      Set Invoice Paid
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id       path  string          true  "Invoice ID"
// @Param        request  body  setPaidRequest  true  "Paid flag"
// @Success      200  {object}  DataResponse
// @Router       /invoices/{id}/paid [patch]
func (s *Server) SetInvoicePaid(c *gin.Context) {
	s.setInvoicePaid(c, s.invoiceSvc.SetPaid)
}

// @Summary      List Supplier Invoices
// @Tags         supplier-invoices
// @Produce      json
// @Param        supplier_id  query  string  false  "Supplier ID"
// @Param        period       query  string  false  "Billing period YYYY-MM"
// @Param        paid         query  bool    false  "Paid"
// @Param        page_token   query  string  false  "Page Token"
// @Param        page_size    query  int     false  "Page Size"
// @Success      200  {object}  ListResponse
// @Router       /supplier-invoices [get]
func (s *Server) ListSupplierInvoices(c *gin.Context) {
	s.listInvoices(c, "supplier_id", s.invoiceSvc.ListSupplier)
}

// @Summary      Get Supplier Invoice
// @Tags         supplier-invoices
// @Produce      json
// @Param        id  path  string  true  "Supplier invoice ID"
// @Success      200  {object}  DataResponse
// @Router       /supplier-invoices/{id} [get]
func (s *Server) GetSupplierInvoice(c *gin.Context) {
	s.invoiceByID(c, s.invoiceSvc.GetSupplier)
}

// @Summary      Recalculate Supplier Invoice
// @Tags         supplier-invoices
// @Produce      json
// @Param        id  path  string  true  "Supplier invoice ID"
// @Success      200  {object}  DataResponse
// @Router       /supplier-invoices/{id}/recalculate [post]
func (s *Server) RecalculateSupplierInvoice(c *gin.Context) {
	s.invoiceByID(c, s.invoiceSvc.RecalculateSupplier)
}

// @Summary      Delete Supplier Invoice
// @Tags         supplier-invoices
// @Param        id  path  string  true  "Supplier invoice ID"
// @Success      204
// @Router       /supplier-invoices/{id} [delete]
func (s *Server) DeleteSupplierInvoice(c *gin.Context) {
	s.deleteInvoice(c, s.invoiceSvc.DeleteSupplier)
}

// @Summary      Set Supplier Invoice Paid
// @Tags         supplier-invoices
// @Accept       json
// @Produce      json
// @Param        id       path  string          true  "Supplier invoice ID"
// @Param        request  body  setPaidRequest  true  "Paid flag"
// @Success      200  {object}  DataResponse
// @Router       /supplier-invoices/{id}/paid [patch]
func (s *Server) SetSupplierInvoicePaid(c *gin.Context) {
	s.setInvoicePaid(c, s.invoiceSvc.SetSupplierPaid)
}

func (s *Server) listInvoices(c *gin.Context, counterpartyParam string, list func(context.Context, invoicedomain.ListRequest) (invoicedomain.ListResponse, error)) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "page_size must be an integer"))
		return
	}

	req := invoicedomain.ListRequest{
		CounterpartyID: strings.TrimSpace(c.Query(counterpartyParam)),
		FeeType:        strings.TrimSpace(c.Query("fee_type")),
		Period:         strings.TrimSpace(c.Query("period")),
		Pagination:     page,
	}
	if raw := strings.TrimSpace(c.Query("paid")); raw != "" {
		paid, err := strconv.ParseBool(raw)
		if err != nil {
			AbortWithError(c, newValidationError("paid", "invalid_paid", "paid must be true or false"))
			return
		}
		req.Paid = &paid
	}

	resp, err := list(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, resp.Invoices, &resp.PageInfo)
}

func (s *Server) invoiceByID(c *gin.Context, fn func(context.Context, string) (*invoicedomain.Response, error)) {
	resp, err := fn(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) deleteInvoice(c *gin.Context, fn func(context.Context, string) error) {
	if err := fn(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) setInvoicePaid(c *gin.Context, fn func(context.Context, string, bool) (*invoicedomain.Response, error)) {
	var req setPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Paid == nil {
		AbortWithError(c, newValidationError("paid", "missing_paid", "paid is required"))
		return
	}

	resp, err := fn(c.Request.Context(), strings.TrimSpace(c.Param("id")), *req.Paid)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}
