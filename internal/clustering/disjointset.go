package clustering

// DisjointSet is an array-backed union-find over indices 0..n-1.
type DisjointSet struct {
	parent []int
}

// NewDisjointSet creates n singleton sets.
func NewDisjointSet(n int) *DisjointSet {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &DisjointSet{parent: parent}
}

// Find returns the root of x, compressing the path it walked.
func (d *DisjointSet) Find(x int) int {
	root := x
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for x != root {
		next := d.parent[x]
		d.parent[x] = root
		x = next
	}
	return root
}

// Union attaches the root of a under the root of b.
func (d *DisjointSet) Union(a, b int) {
	d.parent[d.Find(a)] = d.Find(b)
}
