package contract

import (
	"fmt"
	"slices"
	"time"
)

// ProcessingStatus marks whether a processing record currently authorizes
// exploitation.
type ProcessingStatus string

const (
	ProcessingActive   ProcessingStatus = "active"
	ProcessingInactive ProcessingStatus = "inactive"
)

// InfrastructureService is one hop of a processing chain.
type InfrastructureService struct {
	Participant     string `json:"participant"`
	ServiceOffering string `json:"serviceOffering"`
}

// DataProcessing is one ledger record. Records are superseded rather than
// overwritten; at most one active record exists per catalog id.
type DataProcessing struct {
	ID                     string                  `json:"id"`
	CatalogID              string                  `json:"catalogId"`
	Provider               string                  `json:"provider,omitempty"`
	Consumer               string                  `json:"consumer,omitempty"`
	InfrastructureServices []InfrastructureService `json:"infrastructureServices"`
	Status                 ProcessingStatus        `json:"status"`
	CreatedAt              time.Time               `json:"createdAt"`
}

func (d DataProcessing) clone() DataProcessing {
	d.InfrastructureServices = slices.Clone(d.InfrastructureServices)
	return d
}

// References reports whether participant takes part in the processing as
// provider, consumer or infrastructure service.
func (d DataProcessing) References(participant string) bool {
	if d.Provider == participant || d.Consumer == participant {
		return true
	}
	return slices.ContainsFunc(d.InfrastructureServices, func(s InfrastructureService) bool {
		return s.Participant == participant
	})
}

func (c *Contract) activeProcessing(catalogID string) int {
	return slices.IndexFunc(c.DataProcessings, func(d DataProcessing) bool {
		return d.CatalogID == catalogID && d.Status == ProcessingActive
	})
}

// InsertProcessing appends rec as active under the given record id.
func (c *Contract) InsertProcessing(rec DataProcessing, id string, at time.Time) (DataProcessing, error) {
	if rec.CatalogID == "" {
		return DataProcessing{}, fmt.Errorf("%w: catalogId is required", ErrInvalidRequest)
	}
	if c.activeProcessing(rec.CatalogID) >= 0 {
		return DataProcessing{}, fmt.Errorf("%w: %s", ErrDuplicateCatalogID, rec.CatalogID)
	}
	rec = rec.clone()
	rec.ID = id
	rec.Status = ProcessingActive
	rec.CreatedAt = at.UTC()
	if rec.InfrastructureServices == nil {
		rec.InfrastructureServices = []InfrastructureService{}
	}
	c.DataProcessings = append(c.DataProcessings, rec)
	return rec, nil
}

// UpdateProcessing supersedes the active record for catalogID: the old record
// becomes inactive and rec is appended as the new active one. rec keeps
// catalogID when it leaves CatalogID empty.
func (c *Contract) UpdateProcessing(catalogID string, rec DataProcessing, id string, at time.Time) (DataProcessing, error) {
	i := c.activeProcessing(catalogID)
	if i < 0 {
		return DataProcessing{}, fmt.Errorf("%w: no active record for catalog id %s", ErrProcessingNotFound, catalogID)
	}
	if rec.CatalogID == "" {
		rec.CatalogID = catalogID
	}
	if rec.CatalogID != catalogID && c.activeProcessing(rec.CatalogID) >= 0 {
		return DataProcessing{}, fmt.Errorf("%w: %s", ErrDuplicateCatalogID, rec.CatalogID)
	}

	c.DataProcessings[i].Status = ProcessingInactive
	rec = rec.clone()
	rec.ID = id
	rec.Status = ProcessingActive
	rec.CreatedAt = at.UTC()
	if rec.InfrastructureServices == nil {
		rec.InfrastructureServices = []InfrastructureService{}
	}
	c.DataProcessings = append(c.DataProcessings, rec)
	return rec, nil
}

// DeactivateProcessing marks the active record with the given id inactive.
func (c *Contract) DeactivateProcessing(recordID string) error {
	i := slices.IndexFunc(c.DataProcessings, func(d DataProcessing) bool {
		return d.ID == recordID && d.Status == ProcessingActive
	})
	if i < 0 {
		return fmt.Errorf("%w: no active record %s", ErrProcessingNotFound, recordID)
	}
	c.DataProcessings[i].Status = ProcessingInactive
	return nil
}

// DeleteProcessing physically removes records matching catalog id and the
// exact infrastructure service chain. It is meant for erroneous entries.
func (c *Contract) DeleteProcessing(catalogID string, infra []InfrastructureService) error {
	before := len(c.DataProcessings)
	c.DataProcessings = slices.DeleteFunc(c.DataProcessings, func(d DataProcessing) bool {
		return d.CatalogID == catalogID && slices.Equal(d.InfrastructureServices, infra)
	})
	if len(c.DataProcessings) == before {
		return fmt.Errorf("%w: catalog id %s", ErrProcessingNotFound, catalogID)
	}
	return nil
}

// ProcessingsFor returns records that reference participant, optionally
// including inactive ones.
func (c *Contract) ProcessingsFor(participant string, includeInactive bool) []DataProcessing {
	out := []DataProcessing{}
	for _, d := range c.DataProcessings {
		if d.Status != ProcessingActive && !includeInactive {
			continue
		}
		if d.References(participant) {
			out = append(out, d.clone())
		}
	}
	return out
}

// ActiveProcessings returns the currently active records.
func (c *Contract) ActiveProcessings() []DataProcessing {
	out := []DataProcessing{}
	for _, d := range c.DataProcessings {
		if d.Status == ProcessingActive {
			out = append(out, d.clone())
		}
	}
	return out
}
