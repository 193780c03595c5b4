package saves

// namespace is one cached container: the current slot or the global store.
type namespace struct {
	slot   int // 0 for the global store
	path   string
	cached bool
}

func (n *namespace) global() bool { return n.slot == 0 }

// PersistenceContext is a snapshot of the namespace a [System] reads and
// writes through: the current slot, its resolved file paths, and whether its
// container is cached.
type PersistenceContext struct {
	Slot           int
	Path           string
	DefaultBackup  string
	IndexedBackups [MaxIndexedBackups]string
	Cached         bool
}

func (n *namespace) context() PersistenceContext {
	pc := PersistenceContext{
		Slot:          n.slot,
		Path:          n.path,
		DefaultBackup: DefaultBackupPath(n.path),
		Cached:        n.cached,
	}

	for i := range MaxIndexedBackups {
		pc.IndexedBackups[i] = IndexedBackupPath(n.path, i)
	}

	return pc
}
