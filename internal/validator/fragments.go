package validator

import (
	"strings"

	language "github.com/hanpama/gqlexec/internal/language"
)

// checkFragmentDefinitions indexes the document's fragments and rejects
// duplicates, unknown spreads, cycles and unused fragments.
func (v *validation) checkFragmentDefinitions() {
	for _, frag := range v.doc.Fragments {
		if _, ok := v.fragments[frag.Name]; ok {
			v.errorf(RuleUniqueFragmentNames, frag.Position, "there can be only one fragment named %q", frag.Name)
			continue
		}
		v.fragments[frag.Name] = frag
	}

	used := map[string]bool{}
	var reach func(set language.SelectionSet)
	reach = func(set language.SelectionSet) {
		for _, spread := range fragmentSpreads(set) {
			frag, ok := v.fragments[spread.Name]
			if !ok {
				v.errorf(RuleKnownFragmentNames, spread.Position, "unknown fragment %q", spread.Name)
				continue
			}
			if used[spread.Name] {
				continue
			}
			used[spread.Name] = true
			reach(frag.SelectionSet)
		}
	}
	for _, op := range v.doc.Operations {
		reach(op.SelectionSet)
	}

	v.detectFragmentCycles()

	for _, frag := range v.doc.Fragments {
		if !used[frag.Name] {
			v.errorf(RuleNoUnusedFragments, frag.Position, "fragment %q is never used", frag.Name)
		}
	}
}

// detectFragmentCycles walks spreads depth first, keeping the stack of
// entered fragments so that a revisit names the full cycle.
func (v *validation) detectFragmentCycles() {
	const (
		unvisited = iota
		visiting
		done
	)
	state := map[string]int{}
	var stack []string

	var visit func(frag *language.FragmentDefinition)
	visit = func(frag *language.FragmentDefinition) {
		state[frag.Name] = visiting
		stack = append(stack, frag.Name)
		for _, spread := range fragmentSpreads(frag.SelectionSet) {
			next, ok := v.fragments[spread.Name]
			if !ok {
				continue
			}
			switch state[spread.Name] {
			case visiting:
				start := 0
				for i, name := range stack {
					if name == spread.Name {
						start = i
					}
				}
				via := stack[start+1:]
				if len(via) == 0 {
					v.errorf(RuleFragmentCycle, spread.Position, "cannot spread fragment %q within itself", spread.Name)
				} else {
					v.errorf(RuleFragmentCycle, spread.Position, "cannot spread fragment %q within itself via %s", spread.Name, strings.Join(via, ", "))
				}
			case unvisited:
				visit(next)
			}
		}
		stack = stack[:len(stack)-1]
		state[frag.Name] = done
	}

	for _, frag := range v.doc.Fragments {
		if state[frag.Name] == unvisited && v.fragments[frag.Name] == frag {
			visit(frag)
		}
	}
}

// fragmentSpreads lists the named spreads of a selection set, descending
// into fields and inline fragments but not into other fragments.
func fragmentSpreads(set language.SelectionSet) []*language.FragmentSpread {
	var out []*language.FragmentSpread
	var walk func(language.SelectionSet)
	walk = func(set language.SelectionSet) {
		for _, sel := range set {
			switch sel := sel.(type) {
			case *language.Field:
				walk(sel.SelectionSet)
			case *language.InlineFragment:
				walk(sel.SelectionSet)
			case *language.FragmentSpread:
				out = append(out, sel)
			}
		}
	}
	walk(set)
	return out
}
