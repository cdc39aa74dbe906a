package nue

// VerifyEachStep performs a full tri-color DFS over every color class
// in c independently, confirming no color's committed-edge subgraph
// contains a cycle. It walks the entire cCDG each call;
// BuildUcastTables runs it once per VL on every routing pass, and tests
// call it directly.
func VerifyEachStep(c *cCDG, colors *colorSet) bool {
	classes := make(map[int][]int) // color root -> vertex/sink indices touched
	seen := map[int]bool{}
	touch := func(idx int) {
		root := colors.find(c.color(idx))
		if root == colorBlocked || root == colorUnused {
			return
		}
		if !seen[idx] {
			seen[idx] = true
			classes[root] = append(classes[root], idx)
		}
	}
	for tail, edges := range c.edgesOut {
		for _, e := range edges {
			root := colors.find(e.color)
			if root == colorBlocked || root == colorUnused {
				continue
			}
			touch(tail)
			touch(e.head)
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)

	for root, nodes := range classes {
		state := make(map[int]int, len(nodes))
		for _, n := range nodes {
			state[n] = white
		}
		var dfs func(int) bool
		dfs = func(u int) bool {
			state[u] = gray
			for _, e := range c.edgesOut[u] {
				if colors.find(e.color) != root {
					continue
				}
				switch state[e.head] {
				case gray:
					return false
				case white:
					if !dfs(e.head) {
						return false
					}
				}
			}
			state[u] = black
			return true
		}
		for _, n := range nodes {
			if state[n] == white {
				if !dfs(n) {
					return false
				}
			}
		}
	}
	return true
}
