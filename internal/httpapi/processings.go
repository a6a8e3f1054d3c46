package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gezibash/arc-contract/internal/contract"
)

// ProcessingList is the body of processing list responses.
type ProcessingList struct {
	Processings []contract.DataProcessing `json:"processings"`
}

func processingList(recs []contract.DataProcessing) ProcessingList {
	if recs == nil {
		recs = []contract.DataProcessing{}
	}
	return ProcessingList{Processings: recs}
}

// ProcessingRef names the records removed by a processing delete.
type ProcessingRef struct {
	CatalogID              string                           `json:"catalogId"`
	InfrastructureServices []contract.InfrastructureService `json:"infrastructureServices"`
}

func (h *Handler) listProcessings(c *gin.Context) {
	out, err := h.m.Processings(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, processingList(out))
}

func (h *Handler) insertProcessings(c *gin.Context) {
	var recs []contract.DataProcessing
	if err := bind(c, &recs); err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.InsertProcessings(c.Request.Context(), c.Param("id"), recs)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, processingList(out))
}

func (h *Handler) processingsFor(c *gin.Context) {
	participant, err := DecodeParticipant(c.Query("participant"))
	if err != nil {
		RespondError(c, err)
		return
	}
	inactive, err := queryBool(c, "includeInactive")
	if err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.ProcessingsFor(c.Request.Context(), c.Param("id"), participant, inactive != nil && *inactive)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, processingList(out))
}

func (h *Handler) updateProcessing(c *gin.Context) {
	var rec contract.DataProcessing
	if err := bind(c, &rec); err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.UpdateProcessing(c.Request.Context(), c.Param("id"), c.Param("catalogId"), rec)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, out)
}

func (h *Handler) deactivateProcessing(c *gin.Context) {
	out, err := h.m.DeactivateProcessing(c.Request.Context(), c.Param("id"), c.Param("recordId"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, out)
}

func (h *Handler) deleteProcessing(c *gin.Context) {
	var ref ProcessingRef
	if err := bind(c, &ref); err != nil {
		RespondError(c, err)
		return
	}
	if err := h.m.DeleteProcessing(c.Request.Context(), c.Param("id"), ref.CatalogID, ref.InfrastructureServices); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
