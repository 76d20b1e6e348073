package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	quotedomain "github.com/railzwaylabs/cargoledger/internal/quote/domain"
	ratingservice "github.com/railzwaylabs/cargoledger/internal/rating/service"
	"github.com/railzwaylabs/cargoledger/pkg/db/pagination"
)

// @Summary      Create Rate Schedule
// @Description  Create a rate schedule with its tiers
// @Tags         quotes
// @Accept       json
// @Produce      json
// @Param        request body quotedomain.UpsertRequest true "Rate schedule"
// @Success      201  {object}  DataResponse
// @Router       /quotes [post]
func (s *Server) CreateQuote(c *gin.Context) {
	var req quotedomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.quoteSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondStatus(c, http.StatusCreated, resp)
}

// @Summary      Replace Rate Schedule
// @Tags         quotes
// @Accept       json
// @Produce      json
// @Param        id      path  string  true  "Rate schedule ID"
// @Param        request body quotedomain.UpsertRequest true "Rate schedule"
// @Success      200  {object}  DataResponse
// @Router       /quotes/{id} [put]
func (s *Server) UpdateQuote(c *gin.Context) {
	var req quotedomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.quoteSvc.Update(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

// @Summary      Get Rate Schedule
// @Tags         quotes
// @Produce      json
// @Param        id  path  string  true  "Rate schedule ID"
// @Success      200  {object}  DataResponse
// @Router       /quotes/{id} [get]
func (s *Server) GetQuote(c *gin.Context) {
	resp, err := s.quoteSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

// @Summary      List Rate Schedules
// @Tags         quotes
// @Produce      json
// @Param        side             query  string  false  "customer or supplier"
// @Param        counterparty_id  query  string  false  "Counterparty ID"
// @Param        fee_type         query  string  false  "Fee type"
// @Param        active_at        query  string  false  "RFC3339 instant the schedule must cover"
// @Param        page_token       query  string  false  "Page Token"
// @Param        page_size        query  int     false  "Page Size"
// @Success      200  {object}  ListResponse
// @Router       /quotes [get]
func (s *Server) ListQuotes(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "page_size must be an integer"))
		return
	}

	req := quotedomain.ListRequest{
		Side:           strings.TrimSpace(c.Query("side")),
		CounterpartyID: strings.TrimSpace(c.Query("counterparty_id")),
		FeeType:        strings.TrimSpace(c.Query("fee_type")),
		Pagination:     page,
	}
	if raw := strings.TrimSpace(c.Query("active_at")); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("active_at", "invalid_active_at", "active_at must be an RFC3339 timestamp"))
			return
		}
		req.ActiveAt = &at
	}

	resp, err := s.quoteSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, resp.Schedules, &resp.PageInfo)
}

// @Summary      Delete Rate Schedule
// @Tags         quotes
// @Param        id  path  string  true  "Rate schedule ID"
// @Success      204
// @Router       /quotes/{id} [delete]
func (s *Server) DeleteQuote(c *gin.Context) {
	if err := s.quoteSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Resolve Quote
// @Description  Resolve the rate schedule and fee for a single fee type without touching waybills
// @Tags         quotes
// @Accept       json
// @Produce      json
// @Param        request body ratingservice.PreviewRequest true "Resolution input"
// @Success      200  {object}  DataResponse
// @Router       /quotes/resolve [post]
func (s *Server) ResolveQuote(c *gin.Context) {
	var req ratingservice.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if s.previewer == nil {
		AbortWithError(c, &APIError{Status: http.StatusServiceUnavailable, Code: "resolver_unavailable"})
		return
	}

	resp, err := s.previewer.Preview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}
