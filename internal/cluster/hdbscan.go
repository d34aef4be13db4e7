package cluster

import (
	"errors"
	"sort"
)

// Noise is the label of points that belong to no dense cluster
const Noise = -1

// zeroDistance stands in for coincident points so that lambda = 1/distance stays finite
const zeroDistance = 1e-12

var errMinClusterSize = errors.New("min cluster size must be greater than one")

// HDBSCAN is hierarchical density-based clustering with excess-of-mass
// cluster selection over euclidean distances. The root of the condensed tree
// is never selected, so a partition without any split yields only noise.
type HDBSCAN struct {
	MinClusterSize int
	MinSamples     int // defaults to MinClusterSize
}

type mstEdge struct {
	a, b   int
	weight float64
}

type linkage struct {
	left, right int
	distance    float64
	size        int
}

type condensedRow struct {
	parent, child int
	lambda        float64
	size          int
}

// Fit labels each vector with a cluster index >= 0 or Noise.
// Fewer points than MinClusterSize is not an error: every point is noise.
func (h HDBSCAN) Fit(points []Vector) ([]int, error) {
	if h.MinClusterSize < 2 {
		return nil, errMinClusterSize
	}
	minSamples := h.MinSamples
	if minSamples <= 0 {
		minSamples = h.MinClusterSize
	}

	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	if n < h.MinClusterSize || n < minSamples || n < 2 {
		return labels, nil
	}

	dist := pairwiseDistances(points)
	core := coreDistances(dist, minSamples)
	edges := mutualReachabilityMST(dist, core)
	tree := singleLinkage(edges, n)
	condensed := condenseTree(tree, n, h.MinClusterSize)
	selected := selectClusters(condensed, n)

	return labelPoints(condensed, selected, n), nil
}

// coreDistances returns, for every point, the distance to its k-th nearest
// neighbour counting the point itself
func coreDistances(dist [][]float64, k int) []float64 {
	core := make([]float64, len(dist))
	row := make([]float64, len(dist))
	for i := range dist {
		copy(row, dist[i])
		sort.Float64s(row)
		core[i] = row[k-1]
	}
	return core
}

// mutualReachabilityMST runs Prim's algorithm over the dense mutual
// reachability graph and returns the n-1 tree edges sorted by weight
func mutualReachabilityMST(dist [][]float64, core []float64) []mstEdge {
	n := len(dist)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = -1
	}

	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[current] = true
	for len(edges) < n-1 {
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			w := max(dist[current][j], core[current], core[j])
			if best[j] < 0 || w < best[j] {
				best[j] = w
				from[j] = current
			}
			if next < 0 || best[j] < best[next] {
				next = j
			}
		}
		inTree[next] = true
		edges = append(edges, mstEdge{a: from[next], b: next, weight: best[next]})
		current = next
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].weight < edges[j].weight })
	return edges
}

// singleLinkage merges MST edges in weight order. Row i describes internal node n+i.
func singleLinkage(edges []mstEdge, n int) []linkage {
	parent := make([]int, 2*n-1)
	size := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
		if i < n {
			size[i] = 1
		}
	}

	find := func(x int) int {
		root := x
		for parent[root] != root {
			root = parent[root]
		}
		for parent[x] != root {
			parent[x], x = root, parent[x]
		}
		return root
	}

	tree := make([]linkage, 0, n-1)
	for i, e := range edges {
		left, right := find(e.a), find(e.b)
		node := n + i
		size[node] = size[left] + size[right]
		parent[left] = node
		parent[right] = node
		tree = append(tree, linkage{left: left, right: right, distance: e.weight, size: size[node]})
	}
	return tree
}

// descendants lists node and everything below it in the single linkage tree, breadth first
func descendants(tree []linkage, node, n int) []int {
	out := []int{node}
	for i := 0; i < len(out); i++ {
		if out[i] >= n {
			row := tree[out[i]-n]
			out = append(out, row.left, row.right)
		}
	}
	return out
}

// condenseTree collapses the single linkage tree into clusters of at least
// minClusterSize points. Cluster labels start at n (the root) and grow in
// breadth-first order, so a child cluster always has a larger label than its parent.
func condenseTree(tree []linkage, n, minClusterSize int) []condensedRow {
	root := 2*n - 2
	relabel := make([]int, 2*n-1)
	ignore := make([]bool, 2*n-1)
	relabel[root] = n
	nextLabel := n + 1

	nodeSize := func(node int) int {
		if node < n {
			return 1
		}
		return tree[node-n].size
	}

	var rows []condensedRow
	fallOut := func(parent, subtree int, lambda float64) {
		for _, sub := range descendants(tree, subtree, n) {
			if sub < n {
				rows = append(rows, condensedRow{parent: parent, child: sub, lambda: lambda, size: 1})
			}
			ignore[sub] = true
		}
	}

	for _, node := range descendants(tree, root, n) {
		if node < n || ignore[node] {
			continue
		}

		row := tree[node-n]
		distance := row.distance
		if distance <= 0 {
			distance = zeroDistance
		}
		lambda := 1 / distance
		parent := relabel[node]
		leftCount, rightCount := nodeSize(row.left), nodeSize(row.right)

		switch {
		case leftCount >= minClusterSize && rightCount >= minClusterSize:
			relabel[row.left] = nextLabel
			nextLabel++
			rows = append(rows, condensedRow{parent: parent, child: relabel[row.left], lambda: lambda, size: leftCount})
			relabel[row.right] = nextLabel
			nextLabel++
			rows = append(rows, condensedRow{parent: parent, child: relabel[row.right], lambda: lambda, size: rightCount})
		case leftCount < minClusterSize && rightCount < minClusterSize:
			fallOut(parent, row.left, lambda)
			fallOut(parent, row.right, lambda)
		case leftCount < minClusterSize:
			relabel[row.right] = parent
			fallOut(parent, row.left, lambda)
		default:
			relabel[row.left] = parent
			fallOut(parent, row.right, lambda)
		}
	}
	return rows
}

// selectClusters picks the flat clustering with maximal total stability
// (excess of mass) and returns the selected cluster labels in ascending order
func selectClusters(rows []condensedRow, n int) []int {
	birth := map[int]float64{n: 0}
	children := make(map[int][]int)
	labels := map[int]struct{}{n: {}}
	for _, r := range rows {
		if r.size > 1 {
			birth[r.child] = r.lambda
			children[r.parent] = append(children[r.parent], r.child)
			labels[r.child] = struct{}{}
		}
	}

	stability := make(map[int]float64, len(labels))
	for _, r := range rows {
		stability[r.parent] += (r.lambda - birth[r.parent]) * float64(r.size)
	}

	nodes := make([]int, 0, len(labels))
	for label := range labels {
		if label != n {
			nodes = append(nodes, label)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(nodes)))

	isCluster := make(map[int]bool, len(nodes))
	for _, node := range nodes {
		isCluster[node] = true
	}

	for _, node := range nodes {
		subtree := 0.0
		for _, child := range children[node] {
			subtree += stability[child]
		}
		if subtree > stability[node] {
			isCluster[node] = false
			stability[node] = subtree
			continue
		}
		queue := append([]int(nil), children[node]...)
		for len(queue) > 0 {
			sub := queue[0]
			queue = queue[1:]
			isCluster[sub] = false
			queue = append(queue, children[sub]...)
		}
	}

	var selected []int
	for _, node := range nodes {
		if isCluster[node] {
			selected = append(selected, node)
		}
	}
	sort.Ints(selected)
	return selected
}

// labelPoints assigns each point the index of the selected cluster that
// contains the cluster it fell out of, or Noise when none does
func labelPoints(rows []condensedRow, selected []int, n int) []int {
	index := make(map[int]int, len(selected))
	for i, label := range selected {
		index[label] = i
	}

	clusterParent := make(map[int]int)
	pointParent := make(map[int]int, n)
	for _, r := range rows {
		if r.size > 1 {
			clusterParent[r.child] = r.parent
		} else if r.child < n {
			pointParent[r.child] = r.parent
		}
	}

	labels := make([]int, n)
	for point := 0; point < n; point++ {
		labels[point] = Noise
		c, ok := pointParent[point]
		for ok && c != n {
			if i, found := index[c]; found {
				labels[point] = i
				break
			}
			c, ok = clusterParent[c]
		}
	}
	return labels
}
