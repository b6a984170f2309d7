package search

// HandleStats describes one cached index.
type HandleStats struct {
	Collection string `json:"collection"`
	State      string `json:"state"`
	Docs       uint64 `json:"docs"`
	Generation uint64 `json:"generation"`
	Pending    bool   `json:"pending"`
	InMemory   bool   `json:"in_memory"`
}

// Stats is a snapshot of the manager's state.
type Stats struct {
	SearchID   uint64        `json:"search_id"`
	Stale      bool          `json:"stale"`
	Collection string        `json:"collection"`
	Categories []string      `json:"categories"`
	Queued     int           `json:"queued"`
	Handles    []HandleStats `json:"handles"`
}

// Stats returns the current state of the manager.
func (m *Manager) Stats() Stats {
	id := m.lastSearchID.Load()
	m.mu.RLock()
	st := Stats{
		SearchID:   id,
		Stale:      id == 0 || m.retryRebuild.Load(),
		Collection: string(m.collection.ID()),
		Categories: m.categories.Names(),
		Queued:     len(m.jobs),
	}
	m.mu.RUnlock()

	for _, h := range m.cache.Handles() {
		st.Handles = append(st.Handles, HandleStats{
			Collection: string(h.Collection()),
			State:      h.State().String(),
			Docs:       h.DocCount(),
			Generation: h.Generation(),
			Pending:    h.Pending(),
			InMemory:   h.InMemory(),
		})
	}
	return st
}
