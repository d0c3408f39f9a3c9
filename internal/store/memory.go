package store

import "context"

// Memory is an in-memory Store used by tests. It mimics the lookup
// and insert behavior of the Postgres implementation against a small
// fixture schema.
type Memory struct {
	Users      map[string]int64
	Products   map[string]int64
	Components map[int64]map[string]int64
	Groups     map[string]int64
	Keywords   []KeywordDef
	Versions   map[int64]map[string]bool

	Bugs       map[int]*BugRecord
	NextUserID int64
	Synced     bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		Users:      map[string]int64{},
		Products:   map[string]int64{},
		Components: map[int64]map[string]int64{},
		Groups:     map[string]int64{},
		Versions:   map[int64]map[string]bool{},
		Bugs:       map[int]*BugRecord{},
		NextUserID: 1,
	}
}

func (m *Memory) UserIDByEmail(_ context.Context, addr string) (int64, error) {
	if id, ok := m.Users[addr]; ok {
		return id, nil
	}
	return 0, ErrNotFound
}

func (m *Memory) CreateUser(_ context.Context, addr, _ string) (int64, error) {
	id := m.NextUserID
	m.NextUserID++
	m.Users[addr] = id
	return id, nil
}

func (m *Memory) ProductID(_ context.Context, name string) (int64, error) {
	if id, ok := m.Products[name]; ok {
		return id, nil
	}
	return 0, ErrNotFound
}

func (m *Memory) ComponentID(_ context.Context, productID int64, name string) (int64, error) {
	components := m.Components[productID]
	if name != "" {
		if id, ok := components[name]; ok {
			return id, nil
		}
		return 0, ErrNotFound
	}
	if len(components) != 1 {
		return 0, ErrAmbiguousComponent
	}
	for _, id := range components {
		return id, nil
	}
	return 0, ErrNotFound
}

func (m *Memory) GroupID(_ context.Context, name string) (int64, error) {
	if id, ok := m.Groups[name]; ok {
		return id, nil
	}
	return 0, ErrNotFound
}

func (m *Memory) KeywordDefs(_ context.Context) ([]KeywordDef, error) {
	return m.Keywords, nil
}

func (m *Memory) VersionExists(_ context.Context, productID int64, value string) (bool, error) {
	return m.Versions[productID][value], nil
}

func (m *Memory) BugExists(_ context.Context, number int) (bool, error) {
	_, ok := m.Bugs[number]
	return ok, nil
}

func (m *Memory) InsertBug(_ context.Context, bug *BugRecord) error {
	if _, ok := m.Bugs[bug.ID]; ok {
		return ErrIntegrity
	}
	m.Bugs[bug.ID] = bug
	return nil
}

func (m *Memory) SyncBugSequence(_ context.Context) error {
	m.Synced = true
	return nil
}

func (m *Memory) Close() {}
