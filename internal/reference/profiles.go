package reference

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"celltide/internal/matrix"
)

// ProfileSet holds one mean expression profile per labeled cell type.
// Values are genes by labels.
type ProfileSet struct {
	Name   string
	Genes  []string
	Labels []string
	Values *matrix.Dense

	geneIndex map[string]int
}

// LoadProfileSet parses a tab-separated profile table. The header row
// names the labels; each following row is a gene symbol and one mean
// expression value per label.
func LoadProfileSet(name, path string) (*ProfileSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reference %q: %w", name, err)
	}
	defer f.Close()
	return parseProfileSet(name, f)
}

func parseProfileSet(name string, r io.Reader) (*ProfileSet, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<22)

	if !scanner.Scan() {
		return nil, fmt.Errorf("reference %q: empty profile table", name)
	}
	header := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")
	if len(header) < 2 {
		return nil, fmt.Errorf("reference %q: header needs a gene column and at least one label", name)
	}
	labels := header[1:]

	var genes []string
	var rows [][]float64
	line := 1
	for scanner.Scan() {
		line++
		fields := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")
		if len(fields) == 1 && fields[0] == "" {
			continue
		}
		if len(fields) != len(labels)+1 {
			return nil, fmt.Errorf("reference %q line %d: %d fields, want %d", name, line, len(fields), len(labels)+1)
		}
		vals := make([]float64, len(labels))
		for i, s := range fields[1:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("reference %q line %d: %w", name, line, err)
			}
			vals[i] = v
		}
		genes = append(genes, fields[0])
		rows = append(rows, vals)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reference %q: %w", name, err)
	}
	if len(genes) == 0 {
		return nil, fmt.Errorf("reference %q: no gene rows", name)
	}

	values := matrix.NewDense(len(genes), len(labels))
	for g, vals := range rows {
		for l, v := range vals {
			values.Set(g, l, v)
		}
	}
	ps := &ProfileSet{Name: name, Genes: genes, Labels: labels, Values: values}
	ps.geneIndex = make(map[string]int, len(genes))
	for i, g := range genes {
		ps.geneIndex[g] = i
	}
	return ps, nil
}

// GeneIndex returns the row of a gene symbol, or -1.
func (p *ProfileSet) GeneIndex(gene string) int {
	if i, ok := p.geneIndex[gene]; ok {
		return i
	}
	return -1
}

// Profile returns the expression vector of one label column.
func (p *ProfileSet) Profile(label int) []float64 {
	return p.Values.Col(label)
}

// DiscriminatingGenes returns the union of the genes that best separate
// each pair of labels: for every ordered label pair, the topN genes by
// profile difference. Restricting correlation to these genes focuses
// the comparison on signal that distinguishes the reference types.
func (p *ProfileSet) DiscriminatingGenes(topN int) []string {
	if topN <= 0 {
		topN = 10
	}
	type scored struct {
		gene int
		diff float64
	}
	selected := map[int]struct{}{}
	scoredGenes := make([]scored, len(p.Genes))
	for a := 0; a < len(p.Labels); a++ {
		for b := 0; b < len(p.Labels); b++ {
			if a == b {
				continue
			}
			pa, pb := p.Values.Col(a), p.Values.Col(b)
			for g := range p.Genes {
				scoredGenes[g] = scored{gene: g, diff: pa[g] - pb[g]}
			}
			sort.Slice(scoredGenes, func(i, j int) bool {
				if scoredGenes[i].diff != scoredGenes[j].diff {
					return scoredGenes[i].diff > scoredGenes[j].diff
				}
				return scoredGenes[i].gene < scoredGenes[j].gene
			})
			for i := 0; i < topN && i < len(scoredGenes); i++ {
				if scoredGenes[i].diff <= 0 {
					break
				}
				selected[scoredGenes[i].gene] = struct{}{}
			}
		}
	}
	if len(selected) == 0 {
		// Degenerate reference with identical profiles: fall back to
		// the most variable genes overall.
		vars := make([]scored, len(p.Genes))
		for g := range p.Genes {
			vars[g] = scored{gene: g, diff: rowVariance(p.Values, g)}
		}
		sort.Slice(vars, func(i, j int) bool {
			if vars[i].diff != vars[j].diff {
				return vars[i].diff > vars[j].diff
			}
			return vars[i].gene < vars[j].gene
		})
		for i := 0; i < topN && i < len(vars); i++ {
			selected[vars[i].gene] = struct{}{}
		}
	}

	out := make([]string, 0, len(selected))
	for g := range selected {
		out = append(out, p.Genes[g])
	}
	sort.Strings(out)
	return out
}

func rowVariance(m *matrix.Dense, row int) float64 {
	var mean float64
	for c := 0; c < m.Cols; c++ {
		mean += m.At(row, c)
	}
	mean /= float64(m.Cols)
	var v float64
	for c := 0; c < m.Cols; c++ {
		d := m.At(row, c) - mean
		v += d * d
	}
	if math.IsNaN(v) {
		return 0
	}
	return v / float64(m.Cols)
}
