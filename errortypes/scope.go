package errortypes

// Scope tells the exchange in which responses an error may be surfaced.
type Scope int

const (
	ScopeAny Scope = iota
	ScopeDebug
)

type Scoped interface {
	Scope() Scope
}

// ReadScope returns the scope of err, defaulting to ScopeAny.
func ReadScope(err error) Scope {
	if e, ok := err.(Scoped); ok {
		return e.Scope()
	}
	return ScopeAny
}
