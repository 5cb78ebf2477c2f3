package sales

import (
	"context"
	"errors"

	"github.com/jacentio/salestrack/authz"
	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/store"
)

// CatalogInput describes the contents of a catalog.
type CatalogInput struct {
	Name     string
	IsPublic bool
	Products []entity.Product
}

func (s *Service) validateProducts(products []entity.Product) ([]entity.Product, error) {
	out := make([]entity.Product, 0, len(products))
	seen := map[string]bool{}
	for i, p := range products {
		name, err := validateName("product name", p.Name, MaxNameLength)
		if err != nil {
			return nil, err
		}
		if p.PriceCents < 0 || p.PriceCents > MaxPriceCents {
			return nil, errs.Validation("product %d: price must be between 0 and %d cents", i+1, MaxPriceCents)
		}
		p.Name = name
		if p.ID == "" {
			p.ID = s.newID()
		}
		if seen[p.ID] {
			return nil, errs.Validation("product id %s appears twice", p.ID)
		}
		seen[p.ID] = true
		if p.SortOrder == 0 {
			p.SortOrder = i + 1
		}
		out = append(out, p)
	}
	return out, nil
}

// authorizeCatalog checks the caller may change cat:
// administrators manage public catalogs, owners manage private ones.
func authorizeCatalog(caller authz.Caller, cat entity.Catalog) error {
	if cat.IsPublic {
		return authz.RequireAdmin(caller)
	}
	if cat.OwnerAccountID != caller.AccountID {
		return errs.NotFound("catalog %s not found", cat.ID)
	}
	return nil
}

// CreateCatalog creates a private catalog for the caller, or a public one
// when the caller is an administrator.
func (s *Service) CreateCatalog(ctx context.Context, caller authz.Caller, in CatalogInput) (entity.Catalog, error) {
	name, err := validateName("catalog name", in.Name, MaxNameLength)
	if err != nil {
		return entity.Catalog{}, err
	}
	if in.IsPublic {
		if err := authz.RequireAdmin(caller); err != nil {
			return entity.Catalog{}, err
		}
	}
	products, err := s.validateProducts(in.Products)
	if err != nil {
		return entity.Catalog{}, err
	}

	cat := entity.Catalog{ID: s.newID(), Name: name, IsPublic: in.IsPublic, Products: products}
	if !in.IsPublic {
		cat.OwnerAccountID = caller.AccountID
	}
	cat, err = save(ctx, s.store, cat, store.WriteCondition{IfNotExists: true}, "catalog")
	if err != nil {
		return entity.Catalog{}, err
	}
	s.logger.Info("catalog created", "catalogID", cat.ID, "public", cat.IsPublic)
	return cat, nil
}

// GetCatalog returns a public catalog or one the caller owns.
func (s *Service) GetCatalog(ctx context.Context, caller authz.Caller, catalogID string) (entity.Catalog, error) {
	cat, err := load[entity.Catalog](ctx, s.store, entity.CatalogKey(catalogID), "catalog")
	if err != nil {
		return entity.Catalog{}, err
	}
	if !cat.IsPublic && cat.OwnerAccountID != caller.AccountID && !caller.IsAdmin {
		return entity.Catalog{}, errs.NotFound("catalog %s not found", cat.ID)
	}
	return cat, nil
}

// ListPublicCatalogs returns every public catalog.
func (s *Service) ListPublicCatalogs(ctx context.Context) ([]entity.Catalog, error) {
	return list[entity.Catalog](ctx, s.store, store.Query{
		IndexName:  entity.IndexByAccount,
		Partition:  entity.PublicCatalogsPartition(),
		SortPrefix: entity.SortPrefix(entity.TypeCatalog),
	})
}

// ListMyCatalogs returns the caller's private catalogs.
func (s *Service) ListMyCatalogs(ctx context.Context, caller authz.Caller) ([]entity.Catalog, error) {
	return list[entity.Catalog](ctx, s.store, store.Query{
		IndexName:  entity.IndexByAccount,
		Partition:  entity.EncodeKey(entity.TypeAccount, caller.AccountID),
		SortPrefix: entity.SortPrefix(entity.TypeCatalog),
	})
}

// UpdateCatalog replaces a catalog's name and products. Visibility is fixed
// at creation.
func (s *Service) UpdateCatalog(ctx context.Context, caller authz.Caller, catalogID string, in CatalogInput) (entity.Catalog, error) {
	name, err := validateName("catalog name", in.Name, MaxNameLength)
	if err != nil {
		return entity.Catalog{}, err
	}
	cat, err := load[entity.Catalog](ctx, s.store, entity.CatalogKey(catalogID), "catalog")
	if err != nil {
		return entity.Catalog{}, err
	}
	if err := authorizeCatalog(caller, cat); err != nil {
		return entity.Catalog{}, err
	}
	products, err := s.validateProducts(in.Products)
	if err != nil {
		return entity.Catalog{}, err
	}
	cat.Name = name
	cat.Products = products
	return save(ctx, s.store, cat, store.WriteCondition{IfVersion: cat.Version}, "catalog")
}

// DeleteCatalog deletes a catalog. Deleting a missing catalog succeeds.
// Campaigns keep their catalog id and fall back to manual prices.
func (s *Service) DeleteCatalog(ctx context.Context, caller authz.Caller, catalogID string) error {
	cat, err := load[entity.Catalog](ctx, s.store, entity.CatalogKey(catalogID), "catalog")
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := authorizeCatalog(caller, cat); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, cat.Key()); err != nil {
		return err
	}
	s.logger.Info("catalog deleted", "catalogID", cat.ID)
	return nil
}
