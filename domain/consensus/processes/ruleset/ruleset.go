package ruleset

import (
	"sort"
	"strings"
)

// RuleDescriptor describes how a rule is ordered relative to the others.
type RuleDescriptor struct {
	// ID identifies the rule. IDs are unique within a rule set.
	ID string

	// Requires lists the rules that must be registered and must run
	// before this rule.
	Requires []string

	// ExecuteAfter lists rules that must run before this rule when they
	// are registered.
	ExecuteAfter []string

	// PreferredOrder orders rules that are otherwise unconstrained, lower
	// first. Ties are broken by ID.
	PreferredOrder int
}

// Rule is anything that can describe its ordering constraints.
type Rule interface {
	Descriptor() RuleDescriptor
}

// RuleSet is a set of rules in a fixed execution order. The order is
// computed once when the set is created.
type RuleSet[R Rule] struct {
	rules []R
	ids   []string
}

// New orders rules and returns them as a rule set.
func New[R Rule](rules ...R) (*RuleSet[R], error) {
	sorted, err := Sort(rules)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(sorted))
	for i, rule := range sorted {
		ids[i] = rule.Descriptor().ID
	}
	log.Debugf("Validation rules will execute in the order: %s", strings.Join(ids, ", "))
	return &RuleSet[R]{rules: sorted, ids: ids}, nil
}

// Rules returns the rules in execution order.
func (rs *RuleSet[R]) Rules() []R {
	return rs.rules
}

// IDs returns the rule IDs in execution order.
func (rs *RuleSet[R]) IDs() []string {
	result := make([]string, len(rs.ids))
	copy(result, rs.ids)
	return result
}

// Len returns the number of rules in the set.
func (rs *RuleSet[R]) Len() int {
	return len(rs.rules)
}

type ruleGraph struct {
	descriptors []RuleDescriptor
	successors  [][]int
	inDegree    []int
}

// Sort returns rules ordered so that every rule runs after the rules it
// requires and the registered rules it executes after. Among rules that may
// run next, the one with the lowest (PreferredOrder, ID) is chosen, so the
// result does not depend on the order of the input.
func Sort[R Rule](rules []R) ([]R, error) {
	graph, err := buildRuleGraph(rules)
	if err != nil {
		return nil, err
	}

	inDegree := append([]int(nil), graph.inDegree...)
	var ready []int
	for i := range rules {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	sorted := make([]R, 0, len(rules))
	for len(ready) > 0 {
		next := 0
		for i := 1; i < len(ready); i++ {
			if graph.less(ready[i], ready[next]) {
				next = i
			}
		}
		current := ready[next]
		ready = append(ready[:next], ready[next+1:]...)
		sorted = append(sorted, rules[current])

		for _, successor := range graph.successors[current] {
			inDegree[successor]--
			if inDegree[successor] == 0 {
				ready = append(ready, successor)
			}
		}
	}

	if len(sorted) < len(rules) {
		cycleMembers := graph.cycleMembers()
		return nil, newConfigurationError(ErrCircularRuleDependency, cycleMembers,
			"rules depend on each other in a cycle")
	}
	return sorted, nil
}

func buildRuleGraph[R Rule](rules []R) (*ruleGraph, error) {
	graph := &ruleGraph{
		descriptors: make([]RuleDescriptor, len(rules)),
		successors:  make([][]int, len(rules)),
		inDegree:    make([]int, len(rules)),
	}

	indexByID := make(map[string]int, len(rules))
	var duplicates []string
	for i, rule := range rules {
		descriptor := rule.Descriptor()
		graph.descriptors[i] = descriptor
		if _, exists := indexByID[descriptor.ID]; exists {
			duplicates = append(duplicates, descriptor.ID)
			continue
		}
		indexByID[descriptor.ID] = i
	}
	if len(duplicates) > 0 {
		return nil, newConfigurationError(ErrDuplicateRule, sortedUnique(duplicates),
			"rule IDs are registered more than once")
	}

	var missing, missingDetails []string
	edges := make(map[[2]int]struct{})
	addEdge := func(from, to int) {
		edge := [2]int{from, to}
		if _, exists := edges[edge]; exists {
			return
		}
		edges[edge] = struct{}{}
		graph.successors[from] = append(graph.successors[from], to)
		graph.inDegree[to]++
	}
	for i, descriptor := range graph.descriptors {
		for _, required := range descriptor.Requires {
			j, ok := indexByID[required]
			if !ok {
				missing = append(missing, required)
				missingDetails = append(missingDetails, descriptor.ID+" requires "+required)
				continue
			}
			addEdge(j, i)
		}
		for _, after := range descriptor.ExecuteAfter {
			if j, ok := indexByID[after]; ok {
				addEdge(j, i)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missingDetails)
		return nil, newConfigurationError(ErrMissingRequiredRule, sortedUnique(missing),
			"%s", strings.Join(missingDetails, ", "))
	}
	return graph, nil
}

func (graph *ruleGraph) less(a, b int) bool {
	descriptorA, descriptorB := graph.descriptors[a], graph.descriptors[b]
	if descriptorA.PreferredOrder != descriptorB.PreferredOrder {
		return descriptorA.PreferredOrder < descriptorB.PreferredOrder
	}
	return descriptorA.ID < descriptorB.ID
}

// cycleMembers returns the sorted IDs of every rule that belongs to a
// cycle, found as the strongly connected components with more than one
// member or with a self edge.
func (graph *ruleGraph) cycleMembers() []string {
	count := len(graph.descriptors)
	index := make([]int, count)
	lowLink := make([]int, count)
	onStack := make([]bool, count)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	nextIndex := 0
	var members []string

	var strongConnect func(node int)
	strongConnect = func(node int) {
		index[node] = nextIndex
		lowLink[node] = nextIndex
		nextIndex++
		stack = append(stack, node)
		onStack[node] = true

		hasSelfEdge := false
		for _, successor := range graph.successors[node] {
			if successor == node {
				hasSelfEdge = true
			}
			if index[successor] == -1 {
				strongConnect(successor)
				if lowLink[successor] < lowLink[node] {
					lowLink[node] = lowLink[successor]
				}
			} else if onStack[successor] && index[successor] < lowLink[node] {
				lowLink[node] = index[successor]
			}
		}

		if lowLink[node] != index[node] {
			return
		}
		var component []int
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == node {
				break
			}
		}
		if len(component) > 1 || hasSelfEdge {
			for _, member := range component {
				members = append(members, graph.descriptors[member].ID)
			}
		}
	}

	for node := 0; node < count; node++ {
		if index[node] == -1 {
			strongConnect(node)
		}
	}
	sort.Strings(members)
	return members
}

func sortedUnique(values []string) []string {
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if _, exists := set[value]; exists {
			continue
		}
		set[value] = struct{}{}
		result = append(result, value)
	}
	sort.Strings(result)
	return result
}
