package graph

import (
	"math"
	"math/rand"
	"sort"
)

// Louvain partitions n cells connected by weighted edges using the
// Louvain method with a resolution parameter. Higher resolution yields
// more, smaller communities. The node visit order is shuffled with the
// given seed, so a fixed seed produces a fixed partition. Communities
// are renumbered by decreasing size, ties by smallest member index, so
// cluster 0 is always the largest.
func Louvain(n int, edges []Edge, resolution float64, seed int64) []int {
	if n == 0 {
		return []int{}
	}
	if resolution <= 0 {
		resolution = 1
	}
	rng := rand.New(rand.NewSource(seed))

	g := newWeightedGraph(n, edges)
	// assignment[i] maps original cell i to its community in the
	// current (possibly aggregated) graph.
	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = i
	}

	for {
		local, improved := localMove(g, resolution, rng)
		// Compact community ids before aggregation.
		local = compactLabels(local)
		for i := range assignment {
			assignment[i] = local[assignment[i]]
		}
		if !improved {
			break
		}
		next := g.aggregate(local)
		if next.n == g.n {
			break
		}
		g = next
	}
	return renumberBySize(assignment)
}

// Modularity scores a partition of the weighted graph. Used to report
// the modularity curve across candidate resolutions.
func Modularity(n int, edges []Edge, assignment []int, resolution float64) float64 {
	if resolution <= 0 {
		resolution = 1
	}
	var m float64
	degree := make([]float64, n)
	for _, e := range edges {
		m += e.Weight
		degree[e.A] += e.Weight
		degree[e.B] += e.Weight
	}
	if m == 0 {
		return 0
	}
	nComm := 0
	for _, c := range assignment {
		if c+1 > nComm {
			nComm = c + 1
		}
	}
	inside := make([]float64, nComm)
	total := make([]float64, nComm)
	for _, e := range edges {
		if assignment[e.A] == assignment[e.B] {
			inside[assignment[e.A]] += e.Weight
		}
	}
	for i, c := range assignment {
		total[c] += degree[i]
	}
	var q float64
	for c := 0; c < nComm; c++ {
		q += inside[c]/m - resolution*(total[c]/(2*m))*(total[c]/(2*m))
	}
	return q
}

type weightedGraph struct {
	n        int
	adj      [][]halfEdge
	selfLoop []float64
	degree   []float64 // weighted degree including self loops counted twice
	total    float64   // sum of all edge weights (m)
}

type halfEdge struct {
	to int
	w  float64
}

func newWeightedGraph(n int, edges []Edge) *weightedGraph {
	g := &weightedGraph{
		n:        n,
		adj:      make([][]halfEdge, n),
		selfLoop: make([]float64, n),
		degree:   make([]float64, n),
	}
	for _, e := range edges {
		if e.A == e.B {
			g.selfLoop[e.A] += e.Weight
			g.degree[e.A] += 2 * e.Weight
			g.total += e.Weight
			continue
		}
		g.adj[e.A] = append(g.adj[e.A], halfEdge{to: e.B, w: e.Weight})
		g.adj[e.B] = append(g.adj[e.B], halfEdge{to: e.A, w: e.Weight})
		g.degree[e.A] += e.Weight
		g.degree[e.B] += e.Weight
		g.total += e.Weight
	}
	return g
}

// localMove runs Louvain phase one: greedily move nodes between
// communities until no move improves modularity. Returns the community
// of each node and whether any node moved.
func localMove(g *weightedGraph, resolution float64, rng *rand.Rand) ([]int, bool) {
	community := make([]int, g.n)
	commTotal := make([]float64, g.n)
	for i := range community {
		community[i] = i
		commTotal[i] = g.degree[i]
	}
	if g.total == 0 {
		return community, false
	}
	m2 := 2 * g.total

	order := rng.Perm(g.n)
	improvedEver := false
	neighborWeight := map[int]float64{}
	for {
		moved := false
		for _, i := range order {
			cur := community[i]

			for c := range neighborWeight {
				delete(neighborWeight, c)
			}
			for _, he := range g.adj[i] {
				neighborWeight[community[he.to]] += he.w
			}

			commTotal[cur] -= g.degree[i]

			// Gain of joining community c relative to staying alone:
			// w(i,c) - resolution * k_i * tot_c / 2m. Candidate
			// communities visited in sorted order for determinism.
			best := cur
			bestGain := neighborWeight[cur] - resolution*g.degree[i]*commTotal[cur]/m2
			cands := make([]int, 0, len(neighborWeight))
			for c := range neighborWeight {
				cands = append(cands, c)
			}
			sort.Ints(cands)
			for _, c := range cands {
				if c == cur {
					continue
				}
				gain := neighborWeight[c] - resolution*g.degree[i]*commTotal[c]/m2
				if gain > bestGain+1e-12 {
					best = c
					bestGain = gain
				}
			}

			commTotal[best] += g.degree[i]
			if best != cur {
				community[i] = best
				moved = true
				improvedEver = true
			}
		}
		if !moved {
			break
		}
	}
	return community, improvedEver
}

// aggregate collapses each community into a single node, summing edge
// weights. Intra-community weight becomes a self loop.
func (g *weightedGraph) aggregate(community []int) *weightedGraph {
	nComm := 0
	for _, c := range community {
		if c+1 > nComm {
			nComm = c + 1
		}
	}
	agg := map[[2]int]float64{}
	selfLoop := make([]float64, nComm)
	for i := 0; i < g.n; i++ {
		selfLoop[community[i]] += g.selfLoop[i]
		for _, he := range g.adj[i] {
			if he.to < i {
				continue // each undirected edge once
			}
			a, b := community[i], community[he.to]
			if a == b {
				selfLoop[a] += he.w
				continue
			}
			if a > b {
				a, b = b, a
			}
			agg[[2]int{a, b}] += he.w
		}
	}

	keys := make([][2]int, 0, len(agg))
	for k := range agg {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	out := &weightedGraph{
		n:        nComm,
		adj:      make([][]halfEdge, nComm),
		selfLoop: selfLoop,
		degree:   make([]float64, nComm),
	}
	for c, w := range selfLoop {
		out.degree[c] += 2 * w
		out.total += w
	}
	for _, k := range keys {
		w := agg[k]
		out.adj[k[0]] = append(out.adj[k[0]], halfEdge{to: k[1], w: w})
		out.adj[k[1]] = append(out.adj[k[1]], halfEdge{to: k[0], w: w})
		out.degree[k[0]] += w
		out.degree[k[1]] += w
		out.total += w
	}
	return out
}

// compactLabels renumbers labels to a dense 0..k-1 range preserving
// first-appearance order.
func compactLabels(labels []int) []int {
	next := 0
	seen := map[int]int{}
	out := make([]int, len(labels))
	for i, l := range labels {
		id, ok := seen[l]
		if !ok {
			id = next
			seen[l] = id
			next++
		}
		out[i] = id
	}
	return out
}

// renumberBySize relabels communities so that 0 is the largest, with
// ties broken by the smallest member index.
func renumberBySize(assignment []int) []int {
	type comm struct {
		id, size, firstMember int
	}
	byID := map[int]*comm{}
	for i, c := range assignment {
		entry, ok := byID[c]
		if !ok {
			entry = &comm{id: c, firstMember: math.MaxInt}
			byID[c] = entry
		}
		entry.size++
		if i < entry.firstMember {
			entry.firstMember = i
		}
	}
	comms := make([]*comm, 0, len(byID))
	for _, c := range byID {
		comms = append(comms, c)
	}
	sort.Slice(comms, func(i, j int) bool {
		if comms[i].size != comms[j].size {
			return comms[i].size > comms[j].size
		}
		return comms[i].firstMember < comms[j].firstMember
	})
	remap := make(map[int]int, len(comms))
	for rank, c := range comms {
		remap[c.id] = rank
	}
	out := make([]int, len(assignment))
	for i, c := range assignment {
		out[i] = remap[c]
	}
	return out
}
