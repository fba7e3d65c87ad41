package store

// Config holds configuration for the Store.
type Config struct {
	// TableName is the single table holding all record kinds.
	// Default: "chats"
	TableName string

	// IndexName is the global secondary index used for reverse lookups
	// (per-user chat listing, user-by-email).
	// Default: "gsi1"
	IndexName string
}

// DefaultConfig returns the default table and index names.
func DefaultConfig() Config {
	return Config{
		TableName: "chats",
		IndexName: "gsi1",
	}
}

// validate ensures config values are usable.
func (c *Config) validate() {
	if c.TableName == "" {
		c.TableName = "chats"
	}
	if c.IndexName == "" {
		c.IndexName = "gsi1"
	}
}
