package entity

import (
	"strings"

	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/store"
)

// Type tags an entity variant stored in the shared table.
type Type string

const (
	TypeAccount       Type = "account"
	TypeProfile       Type = "profile"
	TypeShare         Type = "share"
	TypeInvite        Type = "invite"
	TypeCampaign      Type = "campaign"
	TypePrefill       Type = "prefill"
	TypeOrder         Type = "order"
	TypeCatalog       Type = "catalog"
	TypePaymentMethod Type = "payment_method"
)

// prefixes is the only mapping between entity types and key prefixes.
var prefixes = map[Type]string{
	TypeAccount:       "ACCOUNT#",
	TypeProfile:       "PROFILE#",
	TypeShare:         "SHARE#",
	TypeInvite:        "INVITE#",
	TypeCampaign:      "CAMPAIGN#",
	TypePrefill:       "PREFILL#",
	TypeOrder:         "ORDER#",
	TypeCatalog:       "CATALOG#",
	TypePaymentMethod: "PAYMENT#",
}

// Index-only partition prefixes.
const (
	shareCodePrefix   = "SHARECODE#"
	signaturePrefix   = "SIGNATURE#"
	publicCatalogsKey = "CATALOGS#PUBLIC"
)

// Secondary indexes of the table.
const (
	// IndexByAccount lists items owned by, granted to or created by an account.
	IndexByAccount = "gsi1"

	// IndexByID resolves entities whose primary key needs a parent id.
	IndexByID = "gsi2"

	// IndexByAttribute resolves public codes and unit signatures.
	IndexByAttribute = "gsi3"
)

const (
	attrGSI1PK = "gsi1pk"
	attrGSI1SK = "gsi1sk"
	attrGSI2PK = "gsi2pk"
	attrGSI2SK = "gsi2sk"
	attrGSI3PK = "gsi3pk"
	attrGSI3SK = "gsi3sk"
)

// Types returns every known entity type.
func Types() []Type {
	return []Type{
		TypeAccount, TypeProfile, TypeShare, TypeInvite, TypeCampaign,
		TypePrefill, TypeOrder, TypeCatalog, TypePaymentMethod,
	}
}

// Prefix returns the key prefix of t, or "" for an unknown type.
func Prefix(t Type) string {
	return prefixes[t]
}

// EncodeKey prepends the prefix of t to rawID unless it is already present.
// Applying it twice is a no-op, so ids arriving with or without their prefix
// produce the same key.
func EncodeKey(t Type, rawID string) string {
	prefix, ok := prefixes[t]
	if !ok {
		panic("entity: unknown type " + string(t))
	}
	if strings.HasPrefix(rawID, prefix) {
		return rawID
	}
	return prefix + rawID
}

// DecodeKey splits a prefixed key into its entity type and raw id.
func DecodeKey(key string) (Type, string, error) {
	for _, t := range Types() {
		prefix := prefixes[t]
		if strings.HasPrefix(key, prefix) {
			raw := key[len(prefix):]
			if raw == "" {
				return "", "", errs.New(errs.KindMalformedKey, "key %q has an empty id", key)
			}
			return t, raw, nil
		}
	}
	return "", "", errs.New(errs.KindMalformedKey, "key %q has no recognized prefix", key)
}

// NormalizeID strips the prefix of t from id if present.
func NormalizeID(t Type, id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), prefixes[t])
}

// SortPrefix returns the sort key prefix that selects children of type t inside a partition.
func SortPrefix(t Type) string {
	return prefixes[t]
}

// AccountKey is the primary key of an account.
func AccountKey(accountID string) store.Key {
	return store.Key{PK: EncodeKey(TypeAccount, accountID), SK: store.MetadataSK}
}

// ProfileKey is the primary key of a profile.
func ProfileKey(profileID string) store.Key {
	return store.Key{PK: EncodeKey(TypeProfile, profileID), SK: store.MetadataSK}
}

// ShareKey is the primary key of the share granting grantee access to profile.
func ShareKey(profileID, granteeAccountID string) store.Key {
	return store.Key{
		PK: EncodeKey(TypeProfile, profileID),
		SK: EncodeKey(TypeShare, NormalizeID(TypeAccount, granteeAccountID)),
	}
}

// InviteKey is the primary key of an invite code.
func InviteKey(code string) store.Key {
	return store.Key{PK: EncodeKey(TypeInvite, code), SK: store.MetadataSK}
}

// CampaignKey is the primary key of a campaign under its profile.
func CampaignKey(profileID, campaignID string) store.Key {
	return store.Key{PK: EncodeKey(TypeProfile, profileID), SK: EncodeKey(TypeCampaign, campaignID)}
}

// PrefillKey is the primary key of a campaign prefill.
func PrefillKey(code string) store.Key {
	return store.Key{PK: EncodeKey(TypePrefill, code), SK: store.MetadataSK}
}

// OrderKey is the primary key of an order under its campaign.
func OrderKey(campaignID, orderID string) store.Key {
	return store.Key{PK: EncodeKey(TypeCampaign, campaignID), SK: EncodeKey(TypeOrder, orderID)}
}

// CatalogKey is the primary key of a catalog.
func CatalogKey(catalogID string) store.Key {
	return store.Key{PK: EncodeKey(TypeCatalog, catalogID), SK: store.MetadataSK}
}

// PaymentMethodKey is the primary key of a payment method. Names are keyed
// case-insensitively so "Venmo" and "venmo" collide.
func PaymentMethodKey(profileID, name string) store.Key {
	return store.Key{
		PK: EncodeKey(TypeProfile, profileID),
		SK: prefixes[TypePaymentMethod] + strings.ToLower(strings.TrimSpace(name)),
	}
}

// ShareCodePartition is the IndexByAttribute partition of a campaign share code.
func ShareCodePartition(code string) string {
	return shareCodePrefix + code
}

// PublicCatalogsPartition is the IndexByAccount partition listing public catalogs.
func PublicCatalogsPartition() string {
	return publicCatalogsKey
}

// Registry returns the cascade relationships between entity partitions:
// a profile owns its campaigns, shares and payment methods; a campaign owns its orders.
func Registry() *store.Registry {
	r := store.NewRegistry()
	for _, child := range []Type{TypeCampaign, TypeShare, TypePaymentMethod} {
		r.Register(store.Relationship{
			ParentType:   string(TypeProfile),
			ParentPrefix: prefixes[TypeProfile],
			ChildType:    string(child),
			ChildPrefix:  prefixes[child],
		})
	}
	r.Register(store.Relationship{
		ParentType:   string(TypeCampaign),
		ParentPrefix: prefixes[TypeCampaign],
		ChildType:    string(TypeOrder),
		ChildPrefix:  prefixes[TypeOrder],
	})
	return r
}
