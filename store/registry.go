package store

import "strings"

// MetadataSK is the sort key of an entity's own record inside its partition.
const MetadataSK = "METADATA"

// Relationship defines a parent-child relationship for cascade operations.
type Relationship struct {
	// ParentType is the parent entity type (e.g., "profile").
	ParentType string

	// ParentPrefix is the key prefix of the partition the parent owns (e.g., "PROFILE#").
	ParentPrefix string

	// ChildType is the child entity type (e.g., "campaign").
	ChildType string

	// ChildPrefix is the sort key prefix of child items inside the parent partition (e.g., "CAMPAIGN#").
	ChildPrefix string
}

// Registry holds all known entity relationships for cascade operations.
type Registry struct {
	relationships []Relationship
	byParent      map[string][]Relationship
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		relationships: []Relationship{},
		byParent:      make(map[string][]Relationship),
	}
}

// Register adds a relationship to the registry.
func (r *Registry) Register(rel Relationship) {
	r.relationships = append(r.relationships, rel)
	r.byParent[rel.ParentType] = append(r.byParent[rel.ParentType], rel)
}

// ChildrenOf returns all child relationships for a given parent type.
func (r *Registry) ChildrenOf(parentType string) []Relationship {
	return r.byParent[parentType]
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	return r.relationships
}

// HasChildren returns true if the parent type has any registered child relationships.
func (r *Registry) HasChildren(parentType string) bool {
	return len(r.byParent[parentType]) > 0
}

// OwnedPartition returns the partition whose items die with the item at key.
//
// An entity's METADATA record owns its own partition (PROFILE#p/METADATA owns
// PROFILE#p). A child item whose sort key carries a registered parent prefix
// owns the partition named by that sort key (PROFILE#p/CAMPAIGN#c owns CAMPAIGN#c).
func (r *Registry) OwnedPartition(key Key) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, rel := range r.relationships {
		if key.SK == MetadataSK && strings.HasPrefix(key.PK, rel.ParentPrefix) {
			return key.PK, true
		}
		if key.SK != key.PK && strings.HasPrefix(key.SK, rel.ParentPrefix) {
			return key.SK, true
		}
	}
	return "", false
}
