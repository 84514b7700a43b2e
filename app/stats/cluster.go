package stats

import "math"

// nanDistance stands in for the distance of an undefined correlation. It is
// the largest distance 1-r can reach.
const nanDistance = 2

type cluster struct {
	leaves []int
	first  int // lowest original index among leaves
}

// ClusterOrder returns the leaf order of an average-linkage hierarchical
// clustering of a correlation matrix, using 1-r as the distance.
//
// The result is deterministic. Among equally close pairs the one with the
// lowest original indices merges first, and a merged cluster keeps the side
// holding the lower original index on the left.
func ClusterOrder(corr [][]float64) []int {
	n := len(corr)
	if n == 0 {
		return []int{}
	}

	dist := make([][]float64, n)
	for i := range n {
		dist[i] = make([]float64, n)
		for j := range n {
			d := 1 - corr[i][j]
			if math.IsNaN(d) {
				d = nanDistance
			}
			dist[i][j] = d
		}
	}

	clusters := make([]*cluster, n)
	for i := range n {
		clusters[i] = &cluster{leaves: []int{i}, first: i}
	}

	// Slots of merged-away clusters are set to nil; dist is kept in slot
	// coordinates and updated with the Lance-Williams average-linkage rule.
	for alive := n; alive > 1; alive-- {
		a, b := -1, -1
		best := math.Inf(1)
		for i := range n {
			if clusters[i] == nil {
				continue
			}
			for j := i + 1; j < n; j++ {
				if clusters[j] == nil {
					continue
				}
				if d := dist[i][j]; d < best || (d == best && lessPair(clusters, i, j, a, b)) {
					best, a, b = d, i, j
				}
			}
		}

		left, right := clusters[a], clusters[b]
		if right.first < left.first {
			left, right = right, left
		}
		na, nb := float64(len(clusters[a].leaves)), float64(len(clusters[b].leaves))
		for k := range n {
			if clusters[k] == nil || k == a || k == b {
				continue
			}
			d := (na*dist[a][k] + nb*dist[b][k]) / (na + nb)
			dist[a][k], dist[k][a] = d, d
		}

		merged := &cluster{
			leaves: append(append([]int{}, left.leaves...), right.leaves...),
			first:  left.first,
		}
		clusters[a], clusters[b] = merged, nil
	}

	for _, c := range clusters {
		if c != nil {
			return c.leaves
		}
	}
	return nil
}

// lessPair orders candidate merges by the original indices they contain.
func lessPair(clusters []*cluster, i, j, a, b int) bool {
	if a < 0 {
		return true
	}
	lo1, hi1 := orderedFirsts(clusters[i], clusters[j])
	lo2, hi2 := orderedFirsts(clusters[a], clusters[b])
	if lo1 != lo2 {
		return lo1 < lo2
	}
	return hi1 < hi2
}

func orderedFirsts(x, y *cluster) (int, int) {
	if x.first < y.first {
		return x.first, y.first
	}
	return y.first, x.first
}
