package cfg

// Dominator computation via iterative intersection over a reverse
// postorder, after Cooper, Harvey and Kennedy. The graphs here are tiny
// (tens of blocks), so the simple fixed-point form is the right tool.

// Dominators returns the immediate-dominator array: idom[b] is the
// immediate dominator of block b, idom[entry] == entry, and -1 marks
// blocks the entry cannot reach (none survive pruning, but be safe).
func (f *Func) Dominators() []int {
	if f.idom != nil {
		return f.idom
	}
	n := len(f.Blocks)
	idom := make([]int, n)
	for i := range idom {
		idom[i] = -1
	}
	if n == 0 {
		f.idom = idom
		return idom
	}

	rpo := f.ReversePostorder()
	order := make([]int, n) // block → RPO position
	for pos, b := range rpo {
		order[b] = pos
	}
	preds := f.Preds()

	idom[0] = 0
	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == 0 {
				continue
			}
			newIdom := -1
			for _, p := range preds[b] {
				if idom[p] < 0 {
					continue
				}
				if newIdom < 0 {
					newIdom = p
				} else {
					newIdom = intersect(idom, order, p, newIdom)
				}
			}
			if newIdom >= 0 && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	f.idom = idom
	return idom
}

func intersect(idom, order []int, a, b int) int {
	for a != b {
		for order[a] > order[b] {
			a = idom[a]
		}
		for order[b] > order[a] {
			b = idom[b]
		}
	}
	return a
}

// Dominates reports whether block a dominates block b.
func (f *Func) Dominates(a, b int) bool {
	idom := f.Dominators()
	for {
		if a == b {
			return true
		}
		if b == 0 || idom[b] < 0 {
			return false
		}
		b = idom[b]
	}
}

// ReversePostorder returns block indices in reverse postorder from the entry.
func (f *Func) ReversePostorder() []int {
	n := len(f.Blocks)
	seen := make([]bool, n)
	post := make([]int, 0, n)

	var walk func(b int)
	walk = func(b int) {
		seen[b] = true
		for _, s := range f.Blocks[b].Succs {
			if !seen[s.Block] {
				walk(s.Block)
			}
		}
		post = append(post, b)
	}
	if n > 0 {
		walk(0)
	}

	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}
