package types

// Internal table names. Content tables are named after their schema; these
// names are reserved for engine bookkeeping.
const (
	RegistryTable = "_schemas"
	MediaTable    = "_media"
)

// InternalTableNames lists the engine-owned tables.
var InternalTableNames = []string{
	RegistryTable,
	MediaTable,
}
