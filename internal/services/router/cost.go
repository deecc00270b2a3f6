package router

// FewerHops is the cost model used for snapshot routing: a path's value is
// the list of edges it crosses, and a shorter list wins. An empty list is the
// worst value, so any non-empty path beats it.
type FewerHops[E any] struct{}

func (FewerHops[E]) Zero() []*E {
	return nil
}

func (FewerHops[E]) Combine(acc []*E, edge *E) []*E {
	return append(acc[:len(acc):len(acc)], edge)
}

func (FewerHops[E]) BetterThan(a, b []*E) bool {
	return len(b) == 0 || len(a) < len(b)
}
