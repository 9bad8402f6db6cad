package history

// Adapter bridges Store to the core HistoryStore port.
type Adapter struct {
	store *Store
}

func NewAdapter(store *Store) *Adapter {
	return &Adapter{store: store}
}

func (a *Adapter) SaveCycle(cycle Cycle) error {
	return a.store.SaveCycle(cycle)
}

func (a *Adapter) LoadCycles(limit int) ([]Cycle, error) {
	return a.store.LoadCycles(limit)
}

func (a *Adapter) Close() error {
	return a.store.Close()
}
