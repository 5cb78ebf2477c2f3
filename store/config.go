package store

// Index describes the key attributes of a secondary index.
type Index struct {
	// PartitionAttr is the index partition key attribute (e.g., "gsi1pk").
	PartitionAttr string

	// SortAttr is the index sort key attribute (e.g., "gsi1sk").
	SortAttr string
}

// Config holds configuration for the Store.
type Config struct {
	// TableName is the single physical table holding every entity.
	// Default: "salestrack"
	TableName string

	// Indexes maps secondary index names to their key attributes.
	// Default: gsi1, gsi2 and gsi3 keyed by gsiNpk/gsiNsk.
	Indexes map[string]Index
}

// DefaultConfig returns the single-table layout used by salestrack.
func DefaultConfig() Config {
	return Config{
		TableName: "salestrack",
		Indexes:   defaultIndexes(),
	}
}

func defaultIndexes() map[string]Index {
	return map[string]Index{
		"gsi1": {PartitionAttr: "gsi1pk", SortAttr: "gsi1sk"},
		"gsi2": {PartitionAttr: "gsi2pk", SortAttr: "gsi2sk"},
		"gsi3": {PartitionAttr: "gsi3pk", SortAttr: "gsi3sk"},
	}
}

// Validate ensures config values are usable, filling defaults where empty.
func (c *Config) Validate() {
	if c.TableName == "" {
		c.TableName = "salestrack"
	}
	if len(c.Indexes) == 0 {
		c.Indexes = defaultIndexes()
	}
}

// KeyAttrs returns the partition and sort attribute names for an index ("" = base table).
func (c Config) KeyAttrs(index string) (partition, sort string, ok bool) {
	if index == "" {
		return AttrPK, AttrSK, true
	}
	idx, ok := c.Indexes[index]
	if !ok {
		return "", "", false
	}
	return idx.PartitionAttr, idx.SortAttr, true
}
