package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/railzwaylabs/cargoledger/internal/invoice/domain"
	jobdomain "github.com/railzwaylabs/cargoledger/internal/job/domain"
	recomputedomain "github.com/railzwaylabs/cargoledger/internal/recompute/domain"
)

// @Summary      Submit Recompute
// @Description  Queue a fee recompute over the matching waybills
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string  false  "Idempotency Key"
// @Param        request body recomputedomain.Request true "Recompute filter"
// @Success      202  {object}  DataResponse
// @Router       /recompute [post]
func (s *Server) SubmitRecompute(c *gin.Context) {
	var req recomputedomain.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.submitJob(c, jobdomain.KindRecompute, req)
}

// @Summary      Submit Invoice Generation
// @Description  Queue invoice generation for a billing period
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string  false  "Idempotency Key"
// @Param        request body invoicedomain.GenerateRequest true "Generation scope"
// @Success      202  {object}  DataResponse
// @Router       /invoices/generate [post]
func (s *Server) SubmitInvoiceGeneration(c *gin.Context) {
	var req invoicedomain.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.submitJob(c, jobdomain.KindGenerateInvoices, req)
}

// submitJob answers 202 for a new job and 200 when an earlier submission
// with the same idempotency key is returned.
func (s *Server) submitJob(c *gin.Context, kind jobdomain.Kind, payload any) {
	resp, created, err := s.jobSvc.Submit(c.Request.Context(), jobdomain.SubmitRequest{
		Kind:           kind,
		Payload:        payload,
		IdempotencyKey: idempotencyKeyFromHeader(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !created {
		respondData(c, resp)
		return
	}
	c.Header("Location", "/api/jobs/"+resp.ID)
	respondStatus(c, http.StatusAccepted, resp)
}

// @Summary      Get Job
// @Tags         jobs
// @Produce      json
// @Param        id  path  string  true  "Job ID"
// @Success      200  {object}  DataResponse
// @Router       /jobs/{id} [get]
func (s *Server) GetJob(c *gin.Context) {
	resp, err := s.jobSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}
