package httpapi

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/gezibash/arc-contract/internal/contract"
	"github.com/gezibash/arc-contract/internal/lifecycle"
	"github.com/gezibash/arc-contract/internal/policy"
	"github.com/gezibash/arc-contract/internal/policy/compiler"
)

// OfferingInjection is the body of an offering policy injection.
type OfferingInjection struct {
	Participant     string               `json:"participant"`
	ServiceOffering string               `json:"serviceOffering"`
	Policies        []compiler.Injection `json:"policies"`
}

func (h *Handler) injectPolicy(c *gin.Context) {
	var inj compiler.Injection
	if err := bind(c, &inj); err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.InjectPolicy(c.Request.Context(), c.Param("id"), inj)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, out)
}

func (h *Handler) injectFlat(c *gin.Context) {
	var injs []compiler.Injection
	if err := bind(c, &injs); err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.InjectFlat(c.Request.Context(), c.Param("id"), injs)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, out)
}

func (h *Handler) injectRolePolicies(c *gin.Context) {
	var entries []lifecycle.RoleInjection
	if err := bind(c, &entries); err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.InjectPolicies(c.Request.Context(), c.Param("id"), entries)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, out)
}

func (h *Handler) injectOfferingPolicies(c *gin.Context) {
	var req OfferingInjection
	if err := bind(c, &req); err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.InjectOfferingPolicies(c.Request.Context(), c.Param("id"),
		req.Participant, req.ServiceOffering, req.Policies)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, out)
}

func offeringQuery(c *gin.Context) (participant, offering string, err error) {
	raw, offering := c.Query("participant"), c.Query("serviceOffering")
	if raw == "" || offering == "" {
		return "", "", fmt.Errorf("%w: participant and serviceOffering are required", contract.ErrInvalidRequest)
	}
	if participant, err = DecodeParticipant(raw); err != nil {
		return "", "", err
	}
	return participant, offering, nil
}

func (h *Handler) clearOfferingPolicies(c *gin.Context) {
	participant, offering, err := offeringQuery(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.ClearOfferingPolicies(c.Request.Context(), c.Param("id"), participant, offering)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, out)
}

func (h *Handler) getOfferingPolicies(c *gin.Context) {
	participant, offering, err := offeringQuery(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.m.OfferingPolicies(c.Request.Context(), c.Param("id"), participant, offering)
	if err != nil {
		RespondError(c, err)
		return
	}
	if out == nil {
		out = []policy.Bundle{}
	}
	RespondOK(c, gin.H{"policies": out})
}

func (h *Handler) removeOffering(c *gin.Context) {
	n, err := h.m.RemoveOfferingEverywhere(c.Request.Context(), c.Param("offering"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"modified": n})
}
