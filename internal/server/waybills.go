package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	waybilldomain "github.com/railzwaylabs/cargoledger/internal/waybill/domain"
)

// @Summary      Create Waybill
// @Tags         waybills
// @Accept       json
// @Produce      json
// @Param        request body waybilldomain.CreateRequest true "Waybill"
// @Success      201  {object}  DataResponse
// @Router       /waybills [post]
func (s *Server) CreateWaybill(c *gin.Context) {
	var req waybilldomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.waybillSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondStatus(c, http.StatusCreated, resp)
}

// @Summary      Get Waybill
// @Tags         waybills
// @Produce      json
// @Param        id  path  string  true  "Waybill ID"
// @Success      200  {object}  DataResponse
// @Router       /waybills/{id} [get]
func (s *Server) GetWaybill(c *gin.Context) {
	resp, err := s.waybillSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}
