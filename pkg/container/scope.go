package container

// Scope defines the lifetime and sharing behavior of a bean.
type Scope string

// Available bean scopes
const (
	// ScopeDependent creates a new instance for each resolution
	ScopeDependent Scope = "dependent"
	// ScopeSingleton shares a single instance for the lifetime of the context
	ScopeSingleton Scope = "singleton"
)

func (s Scope) valid() bool {
	return s == ScopeDependent || s == ScopeSingleton
}

// Stereotype is a named group of scope and qualifier defaults applied to a class.
type Stereotype struct {
	Name string
	// Scope is implied when the class declares no scope of its own. Empty implies nothing.
	Scope      Scope
	Qualifiers []Qualifier
}

// Predefined stereotypes
var (
	Service    = Stereotype{Name: "Service", Scope: ScopeSingleton}
	Repository = Stereotype{Name: "Repository", Scope: ScopeSingleton}
	Controller = Stereotype{Name: "Controller", Scope: ScopeDependent}
	Component  = Stereotype{Name: "Component"}
)

// Annotation marks types that only carry metadata. Such types are never bean candidates.
type Annotation interface {
	IsAnnotation()
}
