package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/gezibash/arc-contract/internal/contract"
	"github.com/gezibash/arc-contract/internal/policy/compiler"
	"github.com/gezibash/arc-contract/internal/policy/pdp"
	"github.com/gezibash/arc-contract/pkg/logging"
)

const ruleDescriptionWidth = 60

// Contract renders a single contract. JSON output carries the full
// aggregate; text and markdown show a summary.
func (o *Output) Contract(c *contract.Contract) error {
	if o.format == FormatJSON {
		return o.Value("contract", c).Render()
	}
	members := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		members = append(members, fmt.Sprintf("%s (%s)", logging.FormatParticipant(m.Participant), m.Role))
	}
	roles := make([]string, 0, len(c.RolesAndObligations))
	for _, r := range c.RolesAndObligations {
		roles = append(roles, fmt.Sprintf("%s[%d]", r.Role, len(r.Policies)))
	}
	return o.KV("contract").
		Set("ID", c.ID).
		Set("Ecosystem", c.Ecosystem).
		Set("Orchestrator", c.Orchestrator).
		Set("Status", string(c.Status)).
		Set("Members", members).
		Set("Revoked", len(c.RevokedMembers)).
		Set("Roles", roles).
		Set("Offerings", len(c.ServiceOfferings)).
		Set("Processings", len(c.DataProcessings)).
		Set("Updated", c.UpdatedAt.Format(time.RFC3339)).
		Render()
}

// Contracts renders a contract list as a table.
func (o *Output) Contracts(cs []*contract.Contract) error {
	t := o.Table("contracts", "ID", "Ecosystem", "Status", "Members", "Updated")
	for _, c := range cs {
		t.AddRow(c.ID, c.Ecosystem, string(c.Status), fmt.Sprint(len(c.Members)), c.UpdatedAt.Format(time.RFC3339))
	}
	return t.Render()
}

// Processings renders ledger records as a table.
func (o *Output) Processings(recs []contract.DataProcessing) error {
	t := o.Table("processings", "ID", "Catalog ID", "Provider", "Consumer", "Chain", "Status")
	for _, d := range recs {
		chain := make([]string, len(d.InfrastructureServices))
		for i, s := range d.InfrastructureServices {
			chain[i] = logging.FormatParticipant(s.Participant)
		}
		t.AddRow(d.ID, d.CatalogID,
			logging.FormatParticipant(d.Provider), logging.FormatParticipant(d.Consumer),
			strings.Join(chain, " > "), string(d.Status))
	}
	return t.Render()
}

// Decision renders an exploitation check result.
func (o *Output) Decision(d *pdp.Decision) error {
	r := o.Result("decision", decisionMessage(d)).
		With("effect", string(d.Effect)).
		With("index", d.Index)
	if d.Reason != "" {
		r.With("reason", d.Reason)
	}
	if d.Rule != nil {
		r.With("action", d.Rule.Action)
	}
	return r.Render()
}

func decisionMessage(d *pdp.Decision) string {
	if d.Authorized {
		return "Authorized"
	}
	return "Denied"
}

// Templates renders the rule catalog with wrapped descriptions.
func (o *Output) Templates(ts []compiler.Template) error {
	if o.format == FormatJSON {
		return o.Value("rules", ts).Render()
	}
	t := o.Table("rules", "ID", "Fields", "Description")
	for _, tpl := range ts {
		fields := make([]string, len(tpl.RequestedFields))
		for i, f := range tpl.RequestedFields {
			fields[i] = f.Name
		}
		desc := tpl.Description
		if o.format == FormatText {
			desc = Wrap(desc, ruleDescriptionWidth)
		}
		t.AddRow(tpl.ID, strings.Join(fields, ", "), desc)
	}
	return t.Render()
}
