package bvsolve

// PostOrder returns every distinct term reachable from roots with children
// ordered before their parents. The traversal uses an explicit stack so that
// deep terms do not exhaust the goroutine stack.
func PostOrder(roots ...*Term) []*Term {
	type frame struct {
		t *Term
		i int // next child to visit
	}

	var out []*Term
	seen := make(map[*Term]struct{})
	var stack []frame
	for _, root := range roots {
		if _, ok := seen[root]; ok {
			continue
		}
		seen[root] = struct{}{}
		stack = append(stack, frame{t: root})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.i < len(top.t.children) {
				c := top.t.children[top.i]
				top.i++
				if _, ok := seen[c]; !ok {
					seen[c] = struct{}{}
					stack = append(stack, frame{t: c})
				}
				continue
			}
			out = append(out, top.t)
			stack = stack[:len(stack)-1]
		}
	}
	return out
}

// Contains returns true if v occurs anywhere within t.
func Contains(t, v *Term) bool {
	if t == v {
		return true
	}
	seen := make(map[*Term]struct{})
	stack := []*Term{t}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == v {
			return true
		}
		for _, c := range n.children {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				stack = append(stack, c)
			}
		}
	}
	return false
}

// Symbols returns all symbols reachable from roots, in traversal order.
func Symbols(roots ...*Term) []*Term {
	var a []*Term
	for _, t := range PostOrder(roots...) {
		if t.kind == SYMBOL {
			a = append(a, t)
		}
	}
	return a
}

// Size returns the number of distinct terms reachable from roots.
func Size(roots ...*Term) int {
	return len(PostOrder(roots...))
}
