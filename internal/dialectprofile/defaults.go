package dialectprofile

// DefaultPostgresProfile returns a Profile with every capability this
// module understands enabled, matching Postgres's real feature surface
// (bare OFFSET is legal there).
func DefaultPostgresProfile() (*Profile, error) {
	return NewBuilder("postgres").
		Subqueries().
		Ctes().
		Aggregations().
		WindowFunctions().
		Joins().
		SetOperations().
		OffsetWithoutLimit().
		Build()
}

// DefaultSQLiteProfile returns a Profile matching SQLite's feature surface.
// SQLite accepts bare OFFSET the same as Postgres.
func DefaultSQLiteProfile() (*Profile, error) {
	return NewBuilder("sqlite").
		Subqueries().
		Ctes().
		Aggregations().
		WindowFunctions().
		Joins().
		SetOperations().
		OffsetWithoutLimit().
		Build()
}

// DefaultMySQLProfile returns a Profile matching MySQL's feature surface.
// MySQL rejects a bare OFFSET with no LIMIT, so offset_without_limit is
// left disabled.
func DefaultMySQLProfile() (*Profile, error) {
	return NewBuilder("mysql").
		Subqueries().
		Ctes().
		Aggregations().
		WindowFunctions().
		Joins().
		SetOperations().
		Build()
}
