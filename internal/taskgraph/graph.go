package taskgraph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"
)

// Func is a task body.
type Func func(ctx context.Context, cfg config.Config) error

// Step is one stage of a sequence: a single name runs alone, several names run concurrently.
type Step []string

// Seq returns a single-task step.
func Seq(name string) Step { return Step{name} }

// Group returns a concurrent step.
func Group(names ...string) Step { return Step(names) }

func (s Step) String() string {
	if len(s) == 1 {
		return s[0]
	}
	return "[" + strings.Join(s, ", ") + "]"
}

// Task is a named unit of build work.
//
// Deps run as one concurrent group before the task. Steps then run in order, and Run, when
// set, runs last. Composite tasks typically have Steps and no Run.
type Task struct {
	Name        string
	Description string
	Deps        []string
	Steps       []Step
	Run         Func
}

// refs lists every task name this task waits on, deduplicated and sorted.
func (t Task) refs() []string {
	seen := make(map[string]struct{})
	for _, d := range t.Deps {
		seen[d] = struct{}{}
	}
	for _, st := range t.Steps {
		for _, n := range st {
			seen[n] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Graph is an immutable, validated set of tasks.
type Graph struct {
	tasks map[string]Task
	names []string
}

// New validates tasks and returns the graph.
func New(tasks ...Task) (*Graph, error) {
	g := &Graph{tasks: make(map[string]Task, len(tasks))}
	for _, t := range tasks {
		if strings.TrimSpace(t.Name) == "" {
			return nil, ferrors.ConfigError("task with empty name").Build()
		}
		if _, dup := g.tasks[t.Name]; dup {
			return nil, ferrors.ConfigError("duplicate task name").
				WithTask(t.Name).
				Build()
		}
		g.tasks[t.Name] = t
		g.names = append(g.names, t.Name)
	}
	sort.Strings(g.names)

	for _, name := range g.names {
		t := g.tasks[name]
		for _, st := range t.Steps {
			if len(st) == 0 {
				return nil, ferrors.ConfigError("task has an empty step").
					WithTask(name).
					Build()
			}
		}
		for _, ref := range t.refs() {
			if ref == name {
				return nil, ferrors.ConfigError("task depends on itself").
					WithTask(name).
					Build()
			}
			if _, ok := g.tasks[ref]; !ok {
				return nil, ferrors.ConfigError("task references unknown task").
					WithTask(name).
					WithContext("ref", ref).
					Build()
			}
		}
	}

	if cycle := g.findCycle(); len(cycle) > 0 {
		return nil, ferrors.ConfigError("task dependency cycle").
			WithContext("cycle", strings.Join(cycle, " -> ")).
			Build()
	}
	return g, nil
}

// Names returns task names in sorted order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Task looks up a task by name.
func (g *Graph) Task(name string) (Task, bool) {
	t, ok := g.tasks[name]
	return t, ok
}

// Has reports whether name is a registered task.
func (g *Graph) Has(name string) bool {
	_, ok := g.tasks[name]
	return ok
}

// Order returns a deterministic topological order where prerequisites precede dependents.
func (g *Graph) Order() []string {
	indeg := make(map[string]int, len(g.names))
	dependents := make(map[string][]string, len(g.names))
	for _, name := range g.names {
		refs := g.tasks[name].refs()
		indeg[name] = len(refs)
		for _, r := range refs {
			dependents[r] = append(dependents[r], name)
		}
	}

	var ready []string
	for _, name := range g.names {
		if indeg[name] == 0 {
			ready = append(ready, name)
		}
	}

	out := make([]string, 0, len(g.names))
	for len(ready) > 0 {
		sort.Strings(ready)
		n := ready[0]
		ready = ready[1:]
		out = append(out, n)
		for _, m := range dependents[n] {
			indeg[m]--
			if indeg[m] == 0 {
				ready = append(ready, m)
			}
		}
	}
	return out
}

// findCycle returns one cycle as a closed path (first name repeated at the end), or nil.
func (g *Graph) findCycle() []string {
	if len(g.Order()) == len(g.names) {
		return nil
	}

	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.names))
	parent := make(map[string]string, len(g.names))
	var cycle []string

	var visit func(u string) bool
	visit = func(u string) bool {
		color[u] = gray
		for _, v := range g.tasks[u].refs() {
			switch color[v] {
			case white:
				parent[v] = u
				if visit(v) {
					return true
				}
			case gray:
				// back edge u -> v; walk parents from u back to v
				path := []string{u}
				for cur := u; cur != v; {
					cur = parent[cur]
					path = append(path, cur)
				}
				for i := len(path) - 1; i >= 0; i-- {
					cycle = append(cycle, path[i])
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for _, name := range g.names {
		if color[name] == white && visit(name) {
			break
		}
	}
	return cycle
}

// Describe renders a one-line summary of a task for listings.
func (g *Graph) Describe(name string) string {
	t, ok := g.tasks[name]
	if !ok {
		return ""
	}
	var parts []string
	if len(t.Deps) > 0 {
		parts = append(parts, "after "+strings.Join(t.Deps, ", "))
	}
	if len(t.Steps) > 0 {
		steps := make([]string, len(t.Steps))
		for i, st := range t.Steps {
			steps[i] = st.String()
		}
		parts = append(parts, "runs "+strings.Join(steps, " -> "))
	}
	desc := t.Description
	if len(parts) > 0 {
		if desc != "" {
			desc += " "
		}
		desc += fmt.Sprintf("(%s)", strings.Join(parts, "; "))
	}
	return desc
}
