package models

// Statement is a fully rendered backend statement with its bound arguments.
type Statement struct {
	Query string
	Args  []any

	// ReturnsId marks an insert whose generated id comes back as a result row
	// instead of through LastInsertId.
	ReturnsId bool
}
