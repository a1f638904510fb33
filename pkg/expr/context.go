package expr

// Context supplies the parts of interpreter state a formula may reference:
// the value of the element it is attached to (`.` before translation,
// `__curr__` after), named response values (`${var}`), the respondent's
// current position within a repeat, and roster-derived covariate lookups
// for pulldata. The survey interpreter implements this interface; tests
// can supply a trivial stand-in.
type Context interface {
	// CurrentValue returns the value of the element the formula belongs
	// to, or apperr.ErrValueMissing if it has none yet.
	CurrentValue() (any, error)

	// GetValue returns the stored response value for a named element, or
	// apperr.ErrValueMissing if it has none yet.
	GetValue(name string) (any, error)

	// Position returns the respondent's 1-based iteration index within
	// the nearest enclosing repeat, or 0 outside of any repeat.
	Position() int

	// RespondentAttr returns a roster-derived attribute of the current
	// respondent by column name, for pulldata lookups.
	RespondentAttr(name string) (string, bool)
}
