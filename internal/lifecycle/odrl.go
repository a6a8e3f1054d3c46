package lifecycle

import "github.com/gezibash/arc-contract/internal/contract"

// ODRLContext is the JSON-LD context of ODRL documents.
const ODRLContext = "http://www.w3.org/ns/odrl.jsonld"

// Agreement renders c as an ODRL agreement. Role and offering policies are
// merged into one permission and prohibition list, roles first.
func Agreement(c *contract.Contract) map[string]any {
	p := c.AllPolicies()
	out := map[string]any{
		"@context":    ODRLContext,
		"@type":       "Agreement",
		"uid":         c.ID,
		"permission":  p.Permission,
		"prohibition": p.Prohibition,
	}
	if c.Profile != "" {
		out["profile"] = c.Profile
	}
	if c.Orchestrator != "" {
		out["assigner"] = c.Orchestrator
	}
	if members := c.ActiveParticipants(); len(members) > 0 {
		out["assignee"] = members
	}
	return out
}
