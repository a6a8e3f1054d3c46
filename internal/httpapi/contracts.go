package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gezibash/arc-contract/internal/contract"
	"github.com/gezibash/arc-contract/internal/lifecycle"
)

// ContractList is the body of list responses.
type ContractList struct {
	Contracts []*contract.Contract `json:"contracts"`
}

func contractList(cs []*contract.Contract) ContractList {
	if cs == nil {
		cs = []*contract.Contract{}
	}
	return ContractList{Contracts: cs}
}

// SignRequest is the body of a sign call.
type SignRequest struct {
	Participant string `json:"participant"`
	Signature   string `json:"signature"`
	Role        string `json:"role,omitempty"`
}

func (h *Handler) listContracts(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.List(c.Request.Context(), lifecycle.ListOptions{Status: c.Query("status"), Limit: limit})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, contractList(out))
}

func (h *Handler) listContractsFor(c *gin.Context) {
	participant, err := DecodeParticipant(c.Param("did"))
	if err != nil {
		RespondError(c, err)
		return
	}
	signed, err := queryBool(c, "hasSigned")
	if err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.ListFor(c.Request.Context(), participant, signed)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, contractList(out))
}

func (h *Handler) createContract(c *gin.Context) {
	var d contract.Draft
	if err := bind(c, &d); err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.Create(c.Request.Context(), d)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) getContract(c *gin.Context) {
	out, err := h.m.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, out)
}

func (h *Handler) getODRL(c *gin.Context) {
	out, err := h.m.ODRL(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, out)
}

func (h *Handler) updateContract(c *gin.Context) {
	var p contract.Patch
	if err := bind(c, &p); err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.Update(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, out)
}

func (h *Handler) deleteContract(c *gin.Context) {
	if err := h.m.Delete(c.Request.Context(), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) purgeContracts(c *gin.Context) {
	n, err := h.m.Purge(c.Request.Context(), c.Query("status"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": n})
}

func (h *Handler) signContract(c *gin.Context) {
	var req SignRequest
	if err := bind(c, &req); err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.Sign(c.Request.Context(), c.Param("id"), req.Participant, req.Signature, req.Role)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, out)
}

func (h *Handler) revokeSignature(c *gin.Context) {
	participant, err := DecodeParticipant(c.Param("did"))
	if err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.Revoke(c.Request.Context(), c.Param("id"), participant)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, out)
}

// checkExploitability answers 200 with the decision when authorized and 403
// with the same body otherwise.
func (h *Handler) checkExploitability(c *gin.Context) {
	var req lifecycle.CheckRequest
	if err := bind(c, &req); err != nil {
		RespondError(c, err)
		return
	}
	d, err := h.m.CheckExploitation(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	status := http.StatusOK
	if !d.Authorized {
		status = http.StatusForbidden
	}
	c.JSON(status, d)
}

func (h *Handler) listRules(c *gin.Context) {
	templates := h.m.Catalog().List()
	ids := make([]string, len(templates))
	for i, t := range templates {
		ids[i] = t.ID
	}
	RespondOK(c, gin.H{"rules": ids, "templates": templates})
}
