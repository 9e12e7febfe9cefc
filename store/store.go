// Package store provides a thin generic resource store on top of bun:
// filtered reads with total counts, batch writes, and id-based deletes. It is
// the persistence boundary the identity services delegate to once validation
// and authorization have passed.
package store

import (
	"context"

	"github.com/uptrace/bun"
)

// Pagination bounds a read; zero values mean "no bound".
type Pagination struct {
	Offset int
	Limit  int
}

// Collection is a typed view over one persisted collection. T is the bun
// model pointer type, e.g. *identity.User.
type Collection[T any] struct {
	db bun.IDB
}

// NewCollection builds a collection bound to db.
func NewCollection[T any](db bun.IDB) *Collection[T] {
	return &Collection[T]{db: db}
}

// Read returns the matching items plus the total count ignoring pagination.
func (c *Collection[T]) Read(ctx context.Context, f Filter, p Pagination) ([]T, int, error) {
	var items []T

	q := c.db.NewSelect().Model(&items)
	q = Apply(q, f)

	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// Create inserts the batch.
func (c *Collection[T]) Create(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}
	_, err := c.db.NewInsert().Model(&items).Exec(ctx)
	return err
}

// Update persists each item by primary key.
func (c *Collection[T]) Update(ctx context.Context, items []T) error {
	for _, item := range items {
		if _, err := c.db.NewUpdate().Model(item).WherePK().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Upsert updates each item by primary key, inserting the ones that do not
// exist yet.
func (c *Collection[T]) Upsert(ctx context.Context, items []T) error {
	for _, item := range items {
		res, err := c.db.NewUpdate().Model(item).WherePK().Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			if _, err := c.db.NewInsert().Model(item).Exec(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes the records with the given ids.
func (c *Collection[T]) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var model T
	_, err := c.db.NewDelete().
		Model(model).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}

// DeleteAll empties the collection.
func (c *Collection[T]) DeleteAll(ctx context.Context) error {
	var model T
	_, err := c.db.NewDelete().
		Model(model).
		Where("1 = 1").
		Exec(ctx)
	return err
}
