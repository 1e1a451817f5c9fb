package manager

import (
	"context"
	"reflect"
)

// Repository is a typed view of an EntityManager for one entity type
type Repository[T any] struct {
	em  *EntityManager
	typ reflect.Type
}

// NewRepository creates a repository for T. T must be an entity struct type.
func NewRepository[T any](em *EntityManager) (*Repository[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if _, err := em.descriptor(typ); err != nil {
		return nil, err
	}
	return &Repository[T]{em: em, typ: typ}, nil
}

// Manager returns the underlying entity manager
func (r *Repository[T]) Manager() *EntityManager {
	return r.em
}

// Persist inserts or updates entity
func (r *Repository[T]) Persist(ctx context.Context, entity *T) (*T, error) {
	obj, err := r.em.Persist(ctx, entity)
	return typed[T](obj), err
}

// Update writes entity by identifier
func (r *Repository[T]) Update(ctx context.Context, entity *T) (*T, error) {
	obj, err := r.em.Update(ctx, entity)
	return typed[T](obj), err
}

// Delete removes entity
func (r *Repository[T]) Delete(ctx context.Context, entity *T) error {
	return r.em.Delete(ctx, entity)
}

// FindByID returns the entity with identifier, or nil
func (r *Repository[T]) FindByID(ctx context.Context, identifier any) (*T, error) {
	obj, err := r.em.FindByID(ctx, r.typ, identifier)
	return typed[T](obj), err
}

// FindBy returns the entities matching filter
func (r *Repository[T]) FindBy(ctx context.Context, filter *Filter) ([]*T, error) {
	list, err := r.em.FindBy(ctx, r.typ, filter)
	return typedList[T](list), err
}

// FindOneBy returns the first entity matching filter, or nil
func (r *Repository[T]) FindOneBy(ctx context.Context, filter *Filter) (*T, error) {
	obj, err := r.em.FindOneBy(ctx, r.typ, filter)
	return typed[T](obj), err
}

// FindAll returns every entity
func (r *Repository[T]) FindAll(ctx context.Context) ([]*T, error) {
	list, err := r.em.FindAll(ctx, r.typ)
	return typedList[T](list), err
}

// Count returns the number of rows matching filter
func (r *Repository[T]) Count(ctx context.Context, filter *Filter) (int64, error) {
	return r.em.Count(ctx, r.typ, filter)
}

// Exists reports whether any row matches filter
func (r *Repository[T]) Exists(ctx context.Context, filter *Filter) (bool, error) {
	return r.em.Exists(ctx, r.typ, filter)
}

// Single returns the only entity matching filter. No match gives nil;
// several give ErrNotSingleResult.
func (r *Repository[T]) Single(ctx context.Context, filter *Filter) (*T, error) {
	list, err := r.FindBy(ctx, filter)
	if err != nil {
		return nil, err
	}
	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		return list[0], nil
	}
	return nil, &Error{Op: "Single", Entity: r.typ.Name(), Err: ErrNotSingleResult}
}

func typed[T any](obj any) *T {
	if obj == nil {
		return nil
	}
	t, _ := obj.(*T)
	return t
}

func typedList[T any](list []any) []*T {
	if list == nil {
		return nil
	}
	out := make([]*T, 0, len(list))
	for _, obj := range list {
		if t, ok := obj.(*T); ok {
			out = append(out, t)
		}
	}
	return out
}
