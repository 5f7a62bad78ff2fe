package join

// FindBase walks left from i to the base (join=0) of i's run.
//
// Blocks (tag other than p) stay on their page and only pass over paragraphs with
// the same tag; any other tag on the way fails. Flowing text skips blocks and may
// cross pages. The second result is false when no base exists; callers decide
// whether to normalize i into its own base.
func (ix *Index) FindBase(i int) (int, bool) {
	if i < 0 || i >= ix.Len() {
		return 0, false
	}

	start := ix.At(i)
	if !start.IsFlow() {
		for j := i; j >= 0; j-- {
			p := ix.At(j)
			if p.PageNumber != start.PageNumber || p.BlockTag != start.BlockTag {
				return 0, false
			}
			if !p.Join {
				return j, true
			}
		}
		return 0, false
	}

	for j := i; j >= 0; j-- {
		p := ix.At(j)
		if !p.IsFlow() {
			continue
		}
		if !p.Join {
			return j, true
		}
	}
	return 0, false
}

// FindRunEnd walks right from base and returns the last position absorbed into its run
func (ix *Index) FindRunEnd(base int) int {
	if base < 0 || base >= ix.Len() {
		return base
	}

	head := ix.At(base)
	end := base
	if !head.IsFlow() {
		for k := base + 1; k < ix.Len(); k++ {
			p := ix.At(k)
			if p.PageNumber != head.PageNumber || p.BlockTag != head.BlockTag || !p.Join {
				break
			}
			end = k
		}
		return end
	}

	for k := base + 1; k < ix.Len(); k++ {
		p := ix.At(k)
		if !p.IsFlow() {
			continue
		}
		if !p.Join {
			break
		}
		end = k
	}
	return end
}

// Run returns base followed by the positions of its members, in document order.
// Blocks interleaved in a flowing-text run are not members.
func (ix *Index) Run(base int) []int {
	if base < 0 || base >= ix.Len() {
		return nil
	}

	end := ix.FindRunEnd(base)
	members := []int{base}
	flow := ix.At(base).IsFlow()
	for k := base + 1; k <= end; k++ {
		if flow {
			if p := ix.At(k); !p.IsFlow() || !p.Join {
				continue
			}
		}
		members = append(members, k)
	}
	return members
}
