package engine

import (
	"fmt"

	"github.com/shaiso/Plantit/internal/domain"
)

// Graph — направленный ациклический граф стадий run.
//
// Стадии хранятся в арене (слайс), зависимости — индексы в этой арене.
// Граф строится Builder'ом, статусы стадий меняет только Execution Engine.
type Graph struct {
	// Run — описание run, по которому построен граф.
	Run *domain.Run

	// Stages — арена стадий; Stage.Index совпадает с позицией.
	Stages []*domain.Stage

	// Dependents — для каждой стадии индексы стадий, которые от неё зависят.
	Dependents [][]int

	// Order — топологически отсортированные индексы.
	Order []int
}

// NewGraph создаёт пустой граф для run.
func NewGraph(run *domain.Run) *Graph {
	return &Graph{Run: run}
}

// Add добавляет стадию с зависимостями и возвращает её индекс.
// Повторяющиеся зависимости учитываются один раз.
func (g *Graph) Add(stage *domain.Stage, deps ...int) int {
	stage.Index = len(g.Stages)
	stage.DependsOn = make([]int, 0, len(deps))

	seen := make(map[int]bool, len(deps))
	for _, d := range deps {
		if seen[d] {
			continue
		}
		seen[d] = true
		stage.DependsOn = append(stage.DependsOn, d)
	}

	g.Stages = append(g.Stages, stage)
	return stage.Index
}

// Finalize проверяет ссылки, строит обратные рёбра и топологический порядок.
func (g *Graph) Finalize() error {
	g.Dependents = make([][]int, len(g.Stages))

	for _, s := range g.Stages {
		for _, d := range s.DependsOn {
			if d == s.Index {
				return NewValidationError(s.ID, "depends_on", "stage depends on itself", ErrSelfDependency)
			}
			if d < 0 || d >= len(g.Stages) {
				return NewValidationError(s.ID, "depends_on",
					fmt.Sprintf("depends on unknown stage index %d", d), ErrMissingDependency)
			}
			g.Dependents[d] = append(g.Dependents[d], s.Index)
		}
	}

	order, err := g.topologicalSort()
	if err != nil {
		return err
	}
	g.Order = order
	return nil
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (g *Graph) topologicalSort() ([]int, error) {
	inDegree := make([]int, len(g.Stages))
	for _, s := range g.Stages {
		inDegree[s.Index] = len(s.DependsOn)
	}

	queue := g.Roots()
	order := make([]int, 0, len(g.Stages))

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)

		for _, dep := range g.Dependents[i] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(g.Stages) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// Roots возвращает индексы стадий без зависимостей.
func (g *Graph) Roots() []int {
	roots := make([]int, 0)
	for _, s := range g.Stages {
		if len(s.DependsOn) == 0 {
			roots = append(roots, s.Index)
		}
	}
	return roots
}

// Ready возвращает стадии PENDING, все зависимости которых SUCCEEDED.
// Порядок — топологический.
func (g *Graph) Ready() []*domain.Stage {
	ready := make([]*domain.Stage, 0)

	for _, i := range g.order() {
		s := g.Stages[i]
		if s.Status != domain.StageStatusPending {
			continue
		}

		allDepsSucceeded := true
		for _, d := range s.DependsOn {
			if g.Stages[d].Status != domain.StageStatusSucceeded {
				allDepsSucceeded = false
				break
			}
		}

		if allDepsSucceeded {
			ready = append(ready, s)
		}
	}

	return ready
}

func (g *Graph) order() []int {
	if len(g.Order) == len(g.Stages) {
		return g.Order
	}
	idx := make([]int, len(g.Stages))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Size возвращает количество стадий.
func (g *Graph) Size() int {
	return len(g.Stages)
}

// Stage возвращает стадию по ID или nil.
func (g *Graph) Stage(id string) *domain.Stage {
	for _, s := range g.Stages {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// ByKind возвращает стадии заданного типа в порядке добавления.
func (g *Graph) ByKind(kind domain.StageKind) []*domain.Stage {
	out := make([]*domain.Stage, 0)
	for _, s := range g.Stages {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// IsComplete проверяет, все ли стадии в финальном статусе.
func (g *Graph) IsComplete() bool {
	for _, s := range g.Stages {
		if !s.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// Counts возвращает число стадий по статусам.
func (g *Graph) Counts() map[domain.StageStatus]int {
	counts := make(map[domain.StageStatus]int)
	for _, s := range g.Stages {
		counts[s.Status]++
	}
	return counts
}
