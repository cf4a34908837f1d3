// Package registry binds the declarations of a Sierra program to concrete
// type and libfunc implementations taken from a Catalog.
package registry

import (
	"fmt"
	"slices"

	"sierranative/internal/sierra"
)

// TypeFactory specializes a generic type for concrete arguments.
type TypeFactory func(ctx *SpecializationContext, args []sierra.GenericArg) (ConcreteType, error)

// LibfuncFactory specializes a generic libfunc for concrete arguments.
type LibfuncFactory func(ctx *SpecializationContext, args []sierra.GenericArg) (ConcreteLibfunc, error)

// Catalog is a named set of builders keyed by generic id. Supporting a new
// construct means registering a new factory.
type Catalog struct {
	Name     string
	types    map[string]TypeFactory
	libfuncs map[string]LibfuncFactory
}

// NewCatalog returns an empty catalog.
func NewCatalog(name string) *Catalog {
	return &Catalog{
		Name:     name,
		types:    make(map[string]TypeFactory),
		libfuncs: make(map[string]LibfuncFactory),
	}
}

// RegisterType adds a type factory. Registering an id twice is an error.
func (c *Catalog) RegisterType(genericID string, f TypeFactory) error {
	if _, ok := c.types[genericID]; ok {
		return fmt.Errorf("catalog %s: type %q already registered", c.Name, genericID)
	}
	c.types[genericID] = f
	return nil
}

// RegisterLibfunc adds a libfunc factory. Registering an id twice is an error.
func (c *Catalog) RegisterLibfunc(genericID string, f LibfuncFactory) error {
	if _, ok := c.libfuncs[genericID]; ok {
		return fmt.Errorf("catalog %s: libfunc %q already registered", c.Name, genericID)
	}
	c.libfuncs[genericID] = f
	return nil
}

// MustRegisterType panics on duplicate registration.
func (c *Catalog) MustRegisterType(genericID string, f TypeFactory) {
	if err := c.RegisterType(genericID, f); err != nil {
		panic(err)
	}
}

// MustRegisterLibfunc panics on duplicate registration.
func (c *Catalog) MustRegisterLibfunc(genericID string, f LibfuncFactory) {
	if err := c.RegisterLibfunc(genericID, f); err != nil {
		panic(err)
	}
}

func (c *Catalog) typeFactory(id string) (TypeFactory, bool) {
	f, ok := c.types[id]
	return f, ok
}

func (c *Catalog) libfuncFactory(id string) (LibfuncFactory, bool) {
	f, ok := c.libfuncs[id]
	return f, ok
}

// TypeIDs lists the registered generic type ids.
func (c *Catalog) TypeIDs() []string {
	out := make([]string, 0, len(c.types))
	for id := range c.types {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// LibfuncIDs lists the registered generic libfunc ids.
func (c *Catalog) LibfuncIDs() []string {
	out := make([]string, 0, len(c.libfuncs))
	for id := range c.libfuncs {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
