package memory

import "slices"

// table keeps rows in insertion order so listings are stable.
type table[T any] struct {
	ids  []string
	rows map[string]T
}

func newTable[T any]() table[T] {
	return table[T]{rows: map[string]T{}}
}

func (t *table[T]) get(id string) (T, bool) {
	row, ok := t.rows[id]
	return row, ok
}

func (t *table[T]) has(id string) bool {
	_, ok := t.rows[id]
	return ok
}

func (t *table[T]) put(id string, row T) {
	if _, ok := t.rows[id]; !ok {
		t.ids = append(t.ids, id)
	}
	t.rows[id] = row
}

func (t *table[T]) remove(id string) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	t.ids = slices.DeleteFunc(t.ids, func(existing string) bool { return existing == id })
	return true
}

func (t *table[T]) each(fn func(T) bool) {
	for _, id := range t.ids {
		if !fn(t.rows[id]) {
			return
		}
	}
}

func (t *table[T]) find(match func(T) bool) (T, bool) {
	var found T
	ok := false
	t.each(func(row T) bool {
		if match(row) {
			found, ok = row, true
			return false
		}
		return true
	})
	return found, ok
}

func (t table[T]) clone(copyRow func(T) T) table[T] {
	out := table[T]{
		ids:  slices.Clone(t.ids),
		rows: make(map[string]T, len(t.rows)),
	}
	for id, row := range t.rows {
		if copyRow != nil {
			row = copyRow(row)
		}
		out.rows[id] = row
	}
	return out
}
