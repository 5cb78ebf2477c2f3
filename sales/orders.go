package sales

import (
	"context"
	"strings"
	"time"

	"github.com/jacentio/salestrack/authz"
	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/lookup"
	"github.com/jacentio/salestrack/store"
)

// LineItemInput is one requested order line. UnitPriceCents is used only
// when the product is not in the campaign's catalog.
type LineItemInput struct {
	ProductID      string
	ProductName    string
	Quantity       int
	UnitPriceCents int64
}

// OrderInput describes a new order or the full replacement of one.
type OrderInput struct {
	CampaignID string
	entity.Customer
	LineItems     []LineItemInput
	PaymentMethod string
	OrderDate     *time.Time
	Notes         string
}

// priceLines validates lines and prices them from the catalog where possible.
func priceLines(cat entity.Catalog, lines []LineItemInput) ([]entity.LineItem, int64, error) {
	if len(lines) == 0 {
		return nil, 0, errs.Validation("an order needs at least one line item")
	}
	items := make([]entity.LineItem, 0, len(lines))
	var total int64
	for i, l := range lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return nil, 0, errs.Validation("line %d: product is required", i+1)
		}
		if l.Quantity < 1 || l.Quantity > MaxQuantity {
			return nil, 0, errs.Validation("line %d: quantity must be between 1 and %d", i+1, MaxQuantity)
		}
		item := entity.LineItem{
			ProductID:      strings.TrimSpace(l.ProductID),
			ProductName:    strings.TrimSpace(l.ProductName),
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
		}
		if p, ok := cat.Product(item.ProductID); ok {
			item.ProductName = p.Name
			item.UnitPriceCents = p.PriceCents
		}
		if item.UnitPriceCents < 0 || item.UnitPriceCents > MaxPriceCents {
			return nil, 0, errs.Validation("line %d: price must be between 0 and %d cents", i+1, MaxPriceCents)
		}
		total += item.Subtotal()
		items = append(items, item)
	}
	return items, total, nil
}

// buildOrder validates in against campaign c and fills o.
func (s *Service) buildOrder(ctx context.Context, c entity.Campaign, in OrderInput, o *entity.Order) error {
	customerName, err := validateName("customer name", in.CustomerName, MaxNameLength)
	if err != nil {
		return err
	}
	payment, err := s.resolvePaymentMethod(ctx, c.ProfileID, in.PaymentMethod)
	if err != nil {
		return err
	}

	// a catalog deleted after the campaign started still allows manual prices
	cat, err := load[entity.Catalog](ctx, s.store, entity.CatalogKey(c.CatalogID), "catalog")
	if err != nil && errs.KindOf(err) != errs.KindNotFound {
		return err
	}
	lines, total, err := priceLines(cat, in.LineItems)
	if err != nil {
		return err
	}

	o.Customer = in.Customer
	o.CustomerName = customerName
	o.LineItems = lines
	o.TotalCents = total
	o.PaymentMethod = payment
	o.Notes = strings.TrimSpace(in.Notes)
	if in.OrderDate != nil {
		o.OrderDate = in.OrderDate.UTC()
	} else if o.OrderDate.IsZero() {
		o.OrderDate = s.now().UTC()
	}
	return nil
}

// CreateOrder records an order against a campaign the caller can write.
func (s *Service) CreateOrder(ctx context.Context, caller authz.Caller, in OrderInput) (entity.Order, error) {
	c, err := s.findCampaign(ctx, lookup.NewChain(), caller, in.CampaignID, authz.Write)
	if err != nil {
		return entity.Order{}, err
	}

	o := entity.Order{ID: s.newID(), CampaignID: c.ID, ProfileID: c.ProfileID}
	if err := s.buildOrder(ctx, c, in, &o); err != nil {
		return entity.Order{}, err
	}
	o, err = save(ctx, s.store, o, store.WriteCondition{IfNotExists: true}, "order")
	if err != nil {
		return entity.Order{}, err
	}
	s.logger.Info("order created", "orderID", o.ID, "campaignID", c.ID, "totalCents", o.TotalCents)
	return o, nil
}

func orderByID(id string) lookup.Request {
	return lookup.Request{
		Index:     entity.IndexByID,
		Partition: entity.EncodeKey(entity.TypeOrder, entity.NormalizeID(entity.TypeOrder, id)),
		Stash:     "order",
	}
}

func (s *Service) findOrder(ctx context.Context, caller authz.Caller, orderID string, need authz.Level) (entity.Order, error) {
	var o entity.Order
	err := s.lookup.Then(ctx, lookup.NewChain(), orderByID(orderID),
		func(ctx context.Context, item *store.Item) error {
			var err error
			if o, err = entity.Unmarshal[entity.Order](item); err != nil {
				return err
			}
			_, err = s.authz.Require(ctx, caller, o.ProfileID, need)
			return err
		},
		func(context.Context) error {
			return errs.NotFound("order %s not found", entity.NormalizeID(entity.TypeOrder, orderID))
		},
	)
	return o, err
}

// GetOrder returns an order by id.
func (s *Service) GetOrder(ctx context.Context, caller authz.Caller, orderID string) (entity.Order, error) {
	return s.findOrder(ctx, caller, orderID, authz.Read)
}

// ListOrders returns the orders of a campaign, oldest first by id.
func (s *Service) ListOrders(ctx context.Context, caller authz.Caller, campaignID string) ([]entity.Order, error) {
	c, err := s.findCampaign(ctx, lookup.NewChain(), caller, campaignID, authz.Read)
	if err != nil {
		return nil, err
	}
	return list[entity.Order](ctx, s.store, store.Query{
		Partition:      entity.EncodeKey(entity.TypeCampaign, c.ID),
		SortPrefix:     entity.SortPrefix(entity.TypeOrder),
		ConsistentRead: true,
	})
}

// UpdateOrder replaces the customer, lines, payment method and notes of an
// order. The order stays on its campaign.
func (s *Service) UpdateOrder(ctx context.Context, caller authz.Caller, orderID string, in OrderInput) (entity.Order, error) {
	o, err := s.findOrder(ctx, caller, orderID, authz.Write)
	if err != nil {
		return entity.Order{}, err
	}
	c, err := load[entity.Campaign](ctx, s.store, entity.CampaignKey(o.ProfileID, o.CampaignID), "campaign")
	if err != nil {
		return entity.Order{}, err
	}
	if err := s.buildOrder(ctx, c, in, &o); err != nil {
		return entity.Order{}, err
	}
	return save(ctx, s.store, o, store.WriteCondition{IfVersion: o.Version}, "order")
}

// DeleteOrder deletes an order. Deleting an order that is already gone succeeds.
func (s *Service) DeleteOrder(ctx context.Context, caller authz.Caller, orderID string) error {
	return s.lookup.Then(ctx, lookup.NewChain(), orderByID(orderID),
		func(ctx context.Context, item *store.Item) error {
			o, err := entity.Unmarshal[entity.Order](item)
			if err != nil {
				return err
			}
			if _, err := s.authz.Require(ctx, caller, o.ProfileID, authz.Write); err != nil {
				return err
			}
			if err := s.store.Delete(ctx, item.Key); err != nil {
				return err
			}
			s.logger.Info("order deleted", "orderID", o.ID, "campaignID", o.CampaignID)
			return nil
		},
		nil,
	)
}
