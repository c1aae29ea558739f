package mapindex

import "github.com/mapdexdb/mapdex/pkg/domain"

// TouchesMapField reports whether an update expression writes any path that
// reaches into, or writes over, a map container. Such updates cannot be
// applied as direct partial updates: the synthetic fields would go stale, so
// the affected documents must be loaded, mutated and fully re-saved instead.
func (r *Registry) TouchesMapField(update map[string]interface{}) bool {
	for _, path := range domain.TouchedPaths(update) {
		if r.schema.TouchesMap(stripWildcards(path)) {
			return true
		}
	}
	return false
}
