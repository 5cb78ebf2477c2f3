package entity

import (
	"strconv"
	"strings"
	"time"

	"github.com/jacentio/salestrack/internal/digest"
	"github.com/jacentio/salestrack/store"
)

// Entity is the closed set of variants stored in the shared table.
// Only this package can add variants.
type Entity interface {
	EntityType() Type
	Key() store.Key
	indexKeys() map[string]string
}

// Meta carries the store-managed attributes round-tripped through the codec.
type Meta struct {
	Version   int64  `dynamodbav:"version,omitempty" json:"version"`
	CreatedAt string `dynamodbav:"created_at,omitempty" json:"createdAt,omitempty"`
	UpdatedAt string `dynamodbav:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// Permission is a grant on a profile.
type Permission string

const (
	PermissionRead  Permission = "READ"
	PermissionWrite Permission = "WRITE"
)

// Valid reports whether p is a known permission.
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// Account is an authenticated end user.
type Account struct {
	ID          string `dynamodbav:"account_id" json:"accountId"`
	Email       string `dynamodbav:"email" json:"email"`
	DisplayName string `dynamodbav:"display_name" json:"displayName"`
	IsAdmin     bool   `dynamodbav:"is_admin" json:"isAdmin"`
	// Preferences is a free-form JSON document owned by the UI.
	Preferences string `dynamodbav:"preferences,omitempty" json:"preferences,omitempty"`
	Meta
}

func (Account) EntityType() Type { return TypeAccount }
func (a Account) Key() store.Key { return AccountKey(a.ID) }
func (Account) indexKeys() map[string]string {
	return nil
}

// Profile is a seller being tracked.
type Profile struct {
	ID             string `dynamodbav:"profile_id" json:"profileId"`
	OwnerAccountID string `dynamodbav:"owner_account_id" json:"ownerAccountId"`
	SellerName     string `dynamodbav:"seller_name" json:"sellerName"`
	Meta
}

func (Profile) EntityType() Type { return TypeProfile }
func (p Profile) Key() store.Key { return ProfileKey(p.ID) }
func (p Profile) indexKeys() map[string]string {
	return map[string]string{
		attrGSI1PK: EncodeKey(TypeAccount, p.OwnerAccountID),
		attrGSI1SK: EncodeKey(TypeProfile, p.ID),
	}
}

// Share grants an account access to a profile it does not own. Profile name
// and owner are denormalized so inbound grants render without a fan-out.
type Share struct {
	ProfileID        string       `dynamodbav:"profile_id" json:"profileId"`
	GranteeAccountID string       `dynamodbav:"grantee_account_id" json:"granteeAccountId"`
	Permissions      []Permission `dynamodbav:"permissions" json:"permissions"`
	ProfileName      string       `dynamodbav:"profile_name" json:"profileName"`
	OwnerAccountID   string       `dynamodbav:"owner_account_id" json:"ownerAccountId"`
	Meta
}

func (Share) EntityType() Type { return TypeShare }
func (s Share) Key() store.Key { return ShareKey(s.ProfileID, s.GranteeAccountID) }
func (s Share) indexKeys() map[string]string {
	return map[string]string{
		attrGSI1PK: EncodeKey(TypeAccount, s.GranteeAccountID),
		attrGSI1SK: prefixes[TypeShare] + NormalizeID(TypeProfile, s.ProfileID),
	}
}

// Has reports whether the share carries p. WRITE implies READ.
func (s Share) Has(p Permission) bool {
	for _, have := range s.Permissions {
		if have == p || (p == PermissionRead && have == PermissionWrite) {
			return true
		}
	}
	return false
}

// Invite is a single-use code that creates a share when redeemed.
type Invite struct {
	Code        string       `dynamodbav:"invite_code" json:"inviteCode"`
	ProfileID   string       `dynamodbav:"profile_id" json:"profileId"`
	Permissions []Permission `dynamodbav:"permissions" json:"permissions"`
	CreatedBy   string       `dynamodbav:"created_by" json:"createdBy"`
	ExpiresAt   time.Time    `dynamodbav:"expires_at" json:"expiresAt"`
	UsedBy      string       `dynamodbav:"used_by,omitempty" json:"usedBy,omitempty"`
	UsedAt      *time.Time   `dynamodbav:"used_at,omitempty" json:"usedAt,omitempty"`
	Meta
}

func (Invite) EntityType() Type { return TypeInvite }
func (i Invite) Key() store.Key { return InviteKey(i.Code) }
func (i Invite) indexKeys() map[string]string {
	return map[string]string{
		attrGSI3PK: EncodeKey(TypeProfile, i.ProfileID),
		attrGSI3SK: EncodeKey(TypeInvite, i.Code),
	}
}

// UnitSignature identifies a real-world fundraising unit.
type UnitSignature struct {
	UnitType   string `dynamodbav:"unit_type,omitempty" json:"unitType,omitempty"`
	UnitNumber int    `dynamodbav:"unit_number,omitempty" json:"unitNumber,omitempty"`
	City       string `dynamodbav:"city,omitempty" json:"city,omitempty"`
	State      string `dynamodbav:"state,omitempty" json:"state,omitempty"`
}

// IsZero reports whether no unit field is set.
func (u UnitSignature) IsZero() bool {
	return u == UnitSignature{}
}

// Campaign is a time-boxed sales run for one profile against one catalog.
type Campaign struct {
	ID        string     `dynamodbav:"campaign_id" json:"campaignId"`
	ProfileID string     `dynamodbav:"profile_id" json:"profileId"`
	Name      string     `dynamodbav:"campaign_name" json:"campaignName"`
	Year      int        `dynamodbav:"campaign_year" json:"campaignYear"`
	StartDate time.Time  `dynamodbav:"start_date" json:"startDate"`
	EndDate   *time.Time `dynamodbav:"end_date,omitempty" json:"endDate,omitempty"`
	UnitSignature
	CatalogID   string `dynamodbav:"catalog_id" json:"catalogId"`
	ShareCode   string `dynamodbav:"share_code,omitempty" json:"shareCode,omitempty"`
	PrefillCode string `dynamodbav:"prefill_code,omitempty" json:"prefillCode,omitempty"`
	Meta
}

func (Campaign) EntityType() Type { return TypeCampaign }
func (c Campaign) Key() store.Key { return CampaignKey(c.ProfileID, c.ID) }
func (c Campaign) indexKeys() map[string]string {
	keys := map[string]string{
		attrGSI2PK: EncodeKey(TypeCampaign, c.ID),
		attrGSI2SK: store.MetadataSK,
	}
	if c.ShareCode != "" {
		keys[attrGSI3PK] = ShareCodePartition(c.ShareCode)
		keys[attrGSI3SK] = EncodeKey(TypeCampaign, c.ID)
	}
	return keys
}

// Signature is the six-field identity used to deduplicate prefills.
type Signature struct {
	UnitSignature
	SeasonName string `json:"seasonName"`
	SeasonYear int    `json:"seasonYear"`
}

// Complete reports whether all six fields are present.
func (s Signature) Complete() bool {
	return strings.TrimSpace(s.UnitType) != "" && s.UnitNumber > 0 &&
		strings.TrimSpace(s.City) != "" && strings.TrimSpace(s.State) != "" &&
		strings.TrimSpace(s.SeasonName) != "" && s.SeasonYear > 0
}

// Partition is the IndexByAttribute partition holding prefills with this signature.
func (s Signature) Partition() string {
	return signaturePrefix + digest.Key(
		s.UnitType,
		strconv.Itoa(s.UnitNumber),
		s.City,
		s.State,
		s.SeasonName,
		strconv.Itoa(s.SeasonYear),
	)
}

// Prefill is a reusable campaign template referenced by a public code.
type Prefill struct {
	Code string `dynamodbav:"prefill_code" json:"prefillCode"`
	UnitSignature
	SeasonName         string     `dynamodbav:"season_name" json:"seasonName"`
	SeasonYear         int        `dynamodbav:"season_year" json:"seasonYear"`
	StartDate          *time.Time `dynamodbav:"start_date,omitempty" json:"startDate,omitempty"`
	EndDate            *time.Time `dynamodbav:"end_date,omitempty" json:"endDate,omitempty"`
	CatalogID          string     `dynamodbav:"catalog_id" json:"catalogId"`
	CreatorAccountID   string     `dynamodbav:"creator_account_id" json:"creatorAccountId"`
	CreatorDisplayName string     `dynamodbav:"creator_display_name" json:"creatorDisplayName"`
	CreatorMessage     string     `dynamodbav:"creator_message,omitempty" json:"creatorMessage,omitempty"`
	Description        string     `dynamodbav:"description,omitempty" json:"description,omitempty"`
	IsActive           bool       `dynamodbav:"is_active" json:"isActive"`
	Meta
}

// AttrIsActive is the attribute filtered on for active prefills.
const AttrIsActive = "is_active"

func (Prefill) EntityType() Type { return TypePrefill }
func (p Prefill) Key() store.Key { return PrefillKey(p.Code) }
func (p Prefill) indexKeys() map[string]string {
	return map[string]string{
		attrGSI1PK: EncodeKey(TypeAccount, p.CreatorAccountID),
		attrGSI1SK: EncodeKey(TypePrefill, p.Code),
		attrGSI3PK: p.Signature().Partition(),
		attrGSI3SK: EncodeKey(TypePrefill, p.Code),
	}
}

// Signature returns the prefill's six-field identity.
func (p Prefill) Signature() Signature {
	return Signature{UnitSignature: p.UnitSignature, SeasonName: p.SeasonName, SeasonYear: p.SeasonYear}
}

// LineItem is one product line of an order.
type LineItem struct {
	ProductID      string `dynamodbav:"product_id" json:"productId"`
	ProductName    string `dynamodbav:"product_name,omitempty" json:"productName,omitempty"`
	Quantity       int    `dynamodbav:"quantity" json:"quantity"`
	UnitPriceCents int64  `dynamodbav:"unit_price_cents" json:"unitPriceCents"`
}

// Subtotal is quantity times unit price.
func (l LineItem) Subtotal() int64 {
	return int64(l.Quantity) * l.UnitPriceCents
}

// Customer is the contact info recorded on an order.
type Customer struct {
	CustomerName    string `dynamodbav:"customer_name" json:"customerName"`
	CustomerPhone   string `dynamodbav:"customer_phone,omitempty" json:"customerPhone,omitempty"`
	CustomerEmail   string `dynamodbav:"customer_email,omitempty" json:"customerEmail,omitempty"`
	CustomerAddress string `dynamodbav:"customer_address,omitempty" json:"customerAddress,omitempty"`
}

// Order is a customer purchase recorded against a campaign.
type Order struct {
	ID         string `dynamodbav:"order_id" json:"orderId"`
	CampaignID string `dynamodbav:"campaign_id" json:"campaignId"`
	ProfileID  string `dynamodbav:"profile_id" json:"profileId"`
	Customer
	LineItems     []LineItem `dynamodbav:"line_items" json:"lineItems"`
	TotalCents    int64      `dynamodbav:"total_cents" json:"totalCents"`
	PaymentMethod string     `dynamodbav:"payment_method" json:"paymentMethod"`
	OrderDate     time.Time  `dynamodbav:"order_date" json:"orderDate"`
	Notes         string     `dynamodbav:"notes,omitempty" json:"notes,omitempty"`
	Meta
}

func (Order) EntityType() Type { return TypeOrder }
func (o Order) Key() store.Key { return OrderKey(o.CampaignID, o.ID) }
func (o Order) indexKeys() map[string]string {
	return map[string]string{
		attrGSI2PK: EncodeKey(TypeOrder, o.ID),
		attrGSI2SK: store.MetadataSK,
	}
}

// Product is one entry of a catalog.
type Product struct {
	ID          string `dynamodbav:"product_id" json:"productId"`
	Name        string `dynamodbav:"product_name" json:"productName"`
	Description string `dynamodbav:"description,omitempty" json:"description,omitempty"`
	PriceCents  int64  `dynamodbav:"price_cents" json:"priceCents"`
	SortOrder   int    `dynamodbav:"sort_order" json:"sortOrder"`
}

// Catalog is a reusable product list, either public (admin-managed) or private to an owner.
type Catalog struct {
	ID             string    `dynamodbav:"catalog_id" json:"catalogId"`
	Name           string    `dynamodbav:"catalog_name" json:"catalogName"`
	IsPublic       bool      `dynamodbav:"is_public" json:"isPublic"`
	OwnerAccountID string    `dynamodbav:"owner_account_id,omitempty" json:"ownerAccountId,omitempty"`
	Products       []Product `dynamodbav:"products" json:"products"`
	Meta
}

func (Catalog) EntityType() Type { return TypeCatalog }
func (c Catalog) Key() store.Key { return CatalogKey(c.ID) }
func (c Catalog) indexKeys() map[string]string {
	pk := PublicCatalogsPartition()
	if !c.IsPublic {
		pk = EncodeKey(TypeAccount, c.OwnerAccountID)
	}
	return map[string]string{
		attrGSI1PK: pk,
		attrGSI1SK: EncodeKey(TypeCatalog, c.ID),
	}
}

// Product returns the catalog product with id, if present.
func (c Catalog) Product(id string) (Product, bool) {
	for _, p := range c.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// PaymentMethod is a named, per-profile payment option.
type PaymentMethod struct {
	ProfileID string `dynamodbav:"profile_id" json:"profileId"`
	Name      string `dynamodbav:"name" json:"name"`
	QRPayload string `dynamodbav:"qr_payload,omitempty" json:"qrPayload,omitempty"`
	IsDeleted bool   `dynamodbav:"is_deleted" json:"isDeleted"`
	Meta
}

func (PaymentMethod) EntityType() Type { return TypePaymentMethod }
func (m PaymentMethod) Key() store.Key { return PaymentMethodKey(m.ProfileID, m.Name) }
func (PaymentMethod) indexKeys() map[string]string {
	return nil
}
