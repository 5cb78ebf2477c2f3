package sales

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/jacentio/salestrack/authz"
	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/lookup"
	"github.com/jacentio/salestrack/store"
)

// CampaignInput describes a new campaign.
type CampaignInput struct {
	ProfileID string
	Name      string
	Year      int
	StartDate time.Time
	EndDate   *time.Time
	entity.UnitSignature
	CatalogID string
}

// CampaignUpdate changes a campaign. Nil fields are kept.
type CampaignUpdate struct {
	Name      *string
	StartDate *time.Time
	EndDate   *time.Time
	CatalogID *string
}

func validateDates(start time.Time, end *time.Time) error {
	if start.IsZero() {
		return errs.Validation("start date is required")
	}
	if end != nil && end.Before(start) {
		return errs.Validation("end date is before start date")
	}
	return nil
}

// CreateCampaign creates a campaign under a profile the caller can write.
func (s *Service) CreateCampaign(ctx context.Context, caller authz.Caller, in CampaignInput) (entity.Campaign, error) {
	name, err := validateName("campaign name", in.Name, MaxNameLength)
	if err != nil {
		return entity.Campaign{}, err
	}
	if in.Year <= 0 {
		return entity.Campaign{}, errs.Validation("campaign year is required")
	}
	if err := validateDates(in.StartDate, in.EndDate); err != nil {
		return entity.Campaign{}, err
	}
	if strings.TrimSpace(in.CatalogID) == "" {
		return entity.Campaign{}, errs.Validation("catalog is required")
	}

	p, err := s.authz.Require(ctx, caller, in.ProfileID, authz.Write)
	if err != nil {
		return entity.Campaign{}, err
	}
	cat, err := s.readableCatalog(ctx, in.CatalogID, caller.AccountID, p.OwnerAccountID)
	if err != nil {
		return entity.Campaign{}, err
	}

	c := entity.Campaign{
		ProfileID:     p.ID,
		Name:          name,
		Year:          in.Year,
		StartDate:     in.StartDate.UTC(),
		EndDate:       in.EndDate,
		UnitSignature: trimUnit(in.UnitSignature),
		CatalogID:     cat.ID,
	}
	return s.insertCampaign(ctx, c)
}

// CreateCampaignFromPrefill creates a campaign under profileID carrying the
// prefill's catalog, unit signature, season and dates. An empty name uses the
// prefill's season name.
func (s *Service) CreateCampaignFromPrefill(ctx context.Context, caller authz.Caller, profileID, prefillCode, name string) (entity.Campaign, error) {
	p, err := s.authz.Require(ctx, caller, profileID, authz.Write)
	if err != nil {
		return entity.Campaign{}, err
	}

	pf, err := s.prefills.ResolveCode(ctx, prefillCode)
	if err != nil {
		return entity.Campaign{}, err
	}
	// the record can exist and be inactive; ResolveCode hides both cases
	if pf == nil || !pf.IsActive {
		return entity.Campaign{}, errs.NotFound("prefill %s not found", prefillCode)
	}

	if strings.TrimSpace(name) == "" {
		name = pf.SeasonName
	}
	name, err = validateName("campaign name", name, MaxNameLength)
	if err != nil {
		return entity.Campaign{}, err
	}

	// the prefill's creator published their own catalog with it
	cat, err := s.readableCatalog(ctx, pf.CatalogID, caller.AccountID, p.OwnerAccountID, pf.CreatorAccountID)
	if err != nil {
		return entity.Campaign{}, err
	}

	start := s.now().UTC()
	if pf.StartDate != nil {
		start = pf.StartDate.UTC()
	}
	c := entity.Campaign{
		ProfileID:     p.ID,
		Name:          name,
		Year:          pf.SeasonYear,
		StartDate:     start,
		EndDate:       pf.EndDate,
		UnitSignature: pf.UnitSignature,
		CatalogID:     cat.ID,
		PrefillCode:   pf.Code,
	}
	return s.insertCampaign(ctx, c)
}

func (s *Service) insertCampaign(ctx context.Context, c entity.Campaign) (entity.Campaign, error) {
	code, err := s.freshShareCode(ctx)
	if err != nil {
		return entity.Campaign{}, err
	}
	c.ID = s.newID()
	c.ShareCode = code

	c, err = save(ctx, s.store, c, store.WriteCondition{IfNotExists: true}, "campaign")
	if err != nil {
		return entity.Campaign{}, err
	}
	s.logger.Info("campaign created", "campaignID", c.ID, "profileID", c.ProfileID, "prefillCode", c.PrefillCode)
	return c, nil
}

// freshShareCode draws share codes until one is not already published.
func (s *Service) freshShareCode(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= MaxShareCodeAttempts; attempt++ {
		code, err := s.codes()
		if err != nil {
			return "", err
		}
		hit, err := s.lookup.Find(ctx, nil, lookup.Request{
			Index:     entity.IndexByAttribute,
			Partition: entity.ShareCodePartition(code),
		})
		if err != nil {
			return "", err
		}
		if hit == nil {
			return code, nil
		}
		s.logger.Warn("campaign share code collision", "attempt", attempt)
	}
	return "", errs.Conflict("could not allocate a unique share code after %d attempts", MaxShareCodeAttempts)
}

func trimUnit(u entity.UnitSignature) entity.UnitSignature {
	u.UnitType = strings.TrimSpace(u.UnitType)
	u.City = strings.TrimSpace(u.City)
	u.State = strings.TrimSpace(u.State)
	return u
}

func campaignByID(id string) lookup.Request {
	return lookup.Request{
		Index:     entity.IndexByID,
		Partition: entity.EncodeKey(entity.TypeCampaign, entity.NormalizeID(entity.TypeCampaign, id)),
		Stash:     "campaign",
	}
}

// findCampaign resolves a campaign by id and checks the caller holds need on
// its profile. A campaign the index cannot see yet is NotFound.
func (s *Service) findCampaign(ctx context.Context, chain *lookup.Chain, caller authz.Caller, campaignID string, need authz.Level) (entity.Campaign, error) {
	var c entity.Campaign
	err := s.lookup.Then(ctx, chain, campaignByID(campaignID),
		func(ctx context.Context, item *store.Item) error {
			var err error
			c, err = entity.Unmarshal[entity.Campaign](item)
			if err != nil {
				return err
			}
			_, err = s.authz.Require(ctx, caller, c.ProfileID, need)
			return err
		},
		func(context.Context) error {
			return errs.NotFound("campaign %s not found", entity.NormalizeID(entity.TypeCampaign, campaignID))
		},
	)
	return c, err
}

// GetCampaign returns a campaign by id.
func (s *Service) GetCampaign(ctx context.Context, caller authz.Caller, campaignID string) (entity.Campaign, error) {
	return s.findCampaign(ctx, lookup.NewChain(), caller, campaignID, authz.Read)
}

// GetCampaignByShareCode returns the campaign published under a share code.
// Share codes are public links, so any authenticated caller may read them.
func (s *Service) GetCampaignByShareCode(ctx context.Context, code string) (entity.Campaign, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var c entity.Campaign
	err := s.lookup.Then(ctx, lookup.NewChain(),
		lookup.Request{Index: entity.IndexByAttribute, Partition: entity.ShareCodePartition(code)},
		func(_ context.Context, item *store.Item) error {
			var err error
			c, err = entity.Unmarshal[entity.Campaign](item)
			return err
		},
		func(context.Context) error {
			return errs.NotFound("campaign share code %s not found", code)
		},
	)
	return c, err
}

// ListCampaigns returns the campaigns of a profile.
func (s *Service) ListCampaigns(ctx context.Context, caller authz.Caller, profileID string) ([]entity.Campaign, error) {
	p, err := s.authz.Require(ctx, caller, profileID, authz.Read)
	if err != nil {
		return nil, err
	}
	return list[entity.Campaign](ctx, s.store, store.Query{
		Partition:      entity.EncodeKey(entity.TypeProfile, p.ID),
		SortPrefix:     entity.SortPrefix(entity.TypeCampaign),
		ConsistentRead: true,
	})
}

// UpdateCampaign applies upd to a campaign the caller can write.
func (s *Service) UpdateCampaign(ctx context.Context, caller authz.Caller, campaignID string, upd CampaignUpdate) (entity.Campaign, error) {
	c, err := s.findCampaign(ctx, lookup.NewChain(), caller, campaignID, authz.Write)
	if err != nil {
		return entity.Campaign{}, err
	}

	if upd.Name != nil {
		if c.Name, err = validateName("campaign name", *upd.Name, MaxNameLength); err != nil {
			return entity.Campaign{}, err
		}
	}
	if upd.StartDate != nil {
		c.StartDate = upd.StartDate.UTC()
	}
	if upd.EndDate != nil {
		c.EndDate = upd.EndDate
	}
	if err := validateDates(c.StartDate, c.EndDate); err != nil {
		return entity.Campaign{}, err
	}
	if upd.CatalogID != nil && entity.NormalizeID(entity.TypeCatalog, *upd.CatalogID) != c.CatalogID {
		p, err := s.authz.Require(ctx, caller, c.ProfileID, authz.Write)
		if err != nil {
			return entity.Campaign{}, err
		}
		cat, err := s.readableCatalog(ctx, *upd.CatalogID, caller.AccountID, p.OwnerAccountID)
		if err != nil {
			return entity.Campaign{}, err
		}
		c.CatalogID = cat.ID
	}

	return save(ctx, s.store, c, store.WriteCondition{IfVersion: c.Version}, "campaign")
}

// DeleteCampaign deletes a campaign and its orders. A campaign that is
// already gone, or not yet visible in the index, counts as deleted.
func (s *Service) DeleteCampaign(ctx context.Context, caller authz.Caller, campaignID string) error {
	return s.lookup.Then(ctx, lookup.NewChain(), campaignByID(campaignID),
		func(ctx context.Context, item *store.Item) error {
			c, err := entity.Unmarshal[entity.Campaign](item)
			if err != nil {
				return err
			}
			if _, err := s.authz.Require(ctx, caller, c.ProfileID, authz.Write); err != nil {
				return err
			}
			if err := s.store.Delete(ctx, item.Key); err != nil {
				return err
			}
			n, err := store.DeletePartition(ctx, s.store, s.registry, entity.EncodeKey(entity.TypeCampaign, c.ID))
			if err != nil {
				return err
			}
			s.logger.Info("campaign deleted", "campaignID", c.ID, "profileID", c.ProfileID, "ordersDeleted", n)
			return nil
		},
		nil,
	)
}

// readableCatalog loads a catalog that is public or owned by one of readers.
// Any other catalog is reported as missing.
func (s *Service) readableCatalog(ctx context.Context, catalogID string, readers ...string) (entity.Catalog, error) {
	cat, err := load[entity.Catalog](ctx, s.store, entity.CatalogKey(entity.NormalizeID(entity.TypeCatalog, catalogID)), "catalog")
	if errors.Is(err, errs.ErrNotFound) {
		return entity.Catalog{}, errs.Validation("catalog %s does not exist", catalogID)
	}
	if err != nil {
		return entity.Catalog{}, err
	}
	if cat.IsPublic || slices.Contains(readers, cat.OwnerAccountID) {
		return cat, nil
	}
	return entity.Catalog{}, errs.Validation("catalog %s does not exist", catalogID)
}
