package mf

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/domain/dataset"
)

// Model is a trained factorization. It implements domain.Model.
type Model struct {
	hp          domain.Hyperparams
	userIDs     []int64
	itemIDs     []int64
	userIndex   map[int64]int
	itemIndex   map[int64]int
	userFactors [][]float64
	itemFactors [][]float64
	// seen[u] lists item indexes the user rated in the training data.
	seen [][]int
}

var _ domain.Model = (*Model)(nil)

func newModel(ds *dataset.Dataset, hp domain.Hyperparams) *Model {
	m := &Model{
		hp:      hp,
		userIDs: slices.Clone(ds.UserIDs()),
		itemIDs: slices.Clone(ds.ItemIDs()),
	}
	m.buildIndexes()
	return m
}

func (m *Model) buildIndexes() {
	m.userIndex = make(map[int64]int, len(m.userIDs))
	for i, id := range m.userIDs {
		m.userIndex[id] = i
	}
	m.itemIndex = make(map[int64]int, len(m.itemIDs))
	for i, id := range m.itemIDs {
		m.itemIndex[id] = i
	}
}

// Hyperparams returns the settings the model was trained with.
func (m *Model) Hyperparams() domain.Hyperparams { return m.hp }

// Users returns the number of users with factors.
func (m *Model) Users() int { return len(m.userIDs) }

// Items returns the number of items with factors.
func (m *Model) Items() int { return len(m.itemIDs) }

// KnowsUser reports whether the user had ratings in the training data.
func (m *Model) KnowsUser(userID int64) bool {
	_, ok := m.userIndex[userID]
	return ok
}

// Predict returns the dot product of the user and item factors.
func (m *Model) Predict(userID, itemID int64) (float64, bool) {
	u, ok := m.userIndex[userID]
	if !ok {
		return 0, false
	}
	i, ok := m.itemIndex[itemID]
	if !ok {
		return 0, false
	}
	return dot(m.userFactors[u], m.itemFactors[i]), true
}

// TopN scores the catalog for the user and returns the best n. Rated items
// are scored too when includeRated is set.
func (m *Model) TopN(userID int64, n int, includeRated bool) []domain.ScoredItem {
	u, ok := m.userIndex[userID]
	if !ok || n <= 0 {
		return nil
	}

	seen := make(map[int]struct{}, len(m.seen[u]))
	if !includeRated {
		for _, i := range m.seen[u] {
			seen[i] = struct{}{}
		}
	}

	x := m.userFactors[u]
	scored := make([]domain.ScoredItem, 0, len(m.itemIDs)-len(seen))
	for i, y := range m.itemFactors {
		if _, ok := seen[i]; ok {
			continue
		}
		scored = append(scored, domain.ScoredItem{ItemID: m.itemIDs[i], Score: dot(x, y)})
	}

	slices.SortFunc(scored, func(a, b domain.ScoredItem) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ItemID, b.ItemID)
	})
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored
}

func dot(a, b []float64) float64 {
	var s float64
	for k := range a {
		s += a[k] * b[k]
	}
	return s
}

// State is the exported, serializable form of a Model.
type State struct {
	Rank           int
	Iterations     int
	Regularization float64
	UserIDs        []int64
	ItemIDs        []int64
	UserFactors    [][]float64
	ItemFactors    [][]float64
	Seen           [][]int
}

// State returns a serializable copy of the model's parameters.
func (m *Model) State() State {
	return State{
		Rank:           m.hp.Rank,
		Iterations:     m.hp.Iterations,
		Regularization: m.hp.Regularization,
		UserIDs:        m.userIDs,
		ItemIDs:        m.itemIDs,
		UserFactors:    m.userFactors,
		ItemFactors:    m.itemFactors,
		Seen:           m.seen,
	}
}

var errCorruptState = errors.New("corrupt model state")

// FromState rebuilds a Model, validating that every dimension agrees.
func FromState(s State) (*Model, error) {
	hp := domain.Hyperparams{Rank: s.Rank, Iterations: s.Iterations, Regularization: s.Regularization}
	if err := hp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errCorruptState, err)
	}
	if len(s.UserFactors) != len(s.UserIDs) || len(s.Seen) != len(s.UserIDs) {
		return nil, fmt.Errorf("%w: %d users, %d user factors, %d seen lists",
			errCorruptState, len(s.UserIDs), len(s.UserFactors), len(s.Seen))
	}
	if len(s.ItemFactors) != len(s.ItemIDs) {
		return nil, fmt.Errorf("%w: %d items, %d item factors", errCorruptState, len(s.ItemIDs), len(s.ItemFactors))
	}
	for _, f := range append(slices.Clip(s.UserFactors), s.ItemFactors...) {
		if len(f) != s.Rank {
			return nil, fmt.Errorf("%w: factor length %d, rank %d", errCorruptState, len(f), s.Rank)
		}
	}
	for _, row := range s.Seen {
		for _, i := range row {
			if i < 0 || i >= len(s.ItemIDs) {
				return nil, fmt.Errorf("%w: seen item index %d out of range", errCorruptState, i)
			}
		}
	}

	m := &Model{
		hp:          hp,
		userIDs:     s.UserIDs,
		itemIDs:     s.ItemIDs,
		userFactors: s.UserFactors,
		itemFactors: s.ItemFactors,
		seen:        s.Seen,
	}
	m.buildIndexes()
	return m, nil
}
