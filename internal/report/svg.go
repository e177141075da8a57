package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"celltide/internal/dataset"
	"celltide/internal/matrix"
	"celltide/internal/stats"
)

const (
	plotSize   = 640
	plotMargin = 48
)

// palette cycles for categorical coloring; chosen for contrast on a
// white background.
var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// ScatterSVG draws the 2-D embedding colored by the group of each
// cell (sample name, cluster id or final label).
func ScatterSVG(path, title string, embedding *matrix.Dense, groups []string) error {
	if embedding == nil || embedding.Rows < 2 || embedding.Cols != len(groups) {
		return fmt.Errorf("embedding and groups disagree: %d cells vs %d groups", colsOf(embedding), len(groups))
	}
	n := embedding.Cols

	minX, maxX := rangeOf(embedding, 0)
	minY, maxY := rangeOf(embedding, 1)
	scaleX := float64(plotSize-2*plotMargin) / span(minX, maxX)
	scaleY := float64(plotSize-2*plotMargin) / span(minY, maxY)

	colors := groupColors(groups)

	var b strings.Builder
	svgHeader(&b, plotSize, plotSize)
	fmt.Fprintf(&b, `<text x="%d" y="24" font-family="sans-serif" font-size="16">%s</text>`+"\n", plotMargin, escapeXML(title))
	for i := 0; i < n; i++ {
		x := plotMargin + (embedding.At(0, i)-minX)*scaleX
		y := float64(plotSize-plotMargin) - (embedding.At(1, i)-minY)*scaleY
		fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="2.5" fill="%s" fill-opacity="0.8"/>`+"\n",
			x, y, colors[groups[i]])
	}
	legendY := 40
	for _, g := range sortedGroupNames(colors) {
		fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="4" fill="%s"/>`+"\n", plotSize-140, legendY, colors[g])
		fmt.Fprintf(&b, `<text x="%d" y="%d" font-family="sans-serif" font-size="12">%s</text>`+"\n",
			plotSize-130, legendY+4, escapeXML(g))
		legendY += 18
	}
	b.WriteString("</svg>\n")
	return writeFile(path, b.String())
}

// DotPlotSVG draws a marker panel dot plot: one row per curated gene,
// one column per cluster. Dot size encodes the fraction of cells
// expressing the gene, color intensity the mean expression.
func DotPlotSVG(path string, ds *dataset.Dataset, assign []int, panelGenes []string) error {
	geneIdx := map[string]int{}
	for i, g := range ds.Genes {
		geneIdx[g] = i
	}
	var genes []string
	for _, g := range panelGenes {
		if _, ok := geneIdx[g]; ok {
			genes = append(genes, g)
		}
	}
	if len(genes) == 0 {
		return fmt.Errorf("no panel genes present in the dataset")
	}
	clusters := dataset.ClusterIDs(assign)
	byCluster := dataset.CellsByCluster(assign)

	means := make([][]float64, len(genes))
	fracs := make([][]float64, len(genes))
	var maxMean float64
	for gi, g := range genes {
		means[gi] = make([]float64, len(clusters))
		fracs[gi] = make([]float64, len(clusters))
		for ci, c := range clusters {
			vals := ds.LogNorm.RowValues(geneIdx[g], byCluster[c])
			means[gi][ci] = stats.Mean(vals)
			fracs[gi][ci] = stats.FractionPositive(vals)
			if means[gi][ci] > maxMean {
				maxMean = means[gi][ci]
			}
		}
	}
	if maxMean == 0 {
		maxMean = 1
	}

	const cell = 36
	width := 140 + len(clusters)*cell
	height := 60 + len(genes)*cell

	var b strings.Builder
	svgHeader(&b, width, height)
	for ci, c := range clusters {
		fmt.Fprintf(&b, `<text x="%d" y="40" font-family="sans-serif" font-size="12" text-anchor="middle">%d</text>`+"\n",
			140+ci*cell+cell/2, c)
	}
	for gi, g := range genes {
		y := 60 + gi*cell + cell/2
		fmt.Fprintf(&b, `<text x="130" y="%d" font-family="sans-serif" font-size="12" text-anchor="end">%s</text>`+"\n",
			y+4, escapeXML(g))
		for ci := range clusters {
			radius := 3 + fracs[gi][ci]*12
			shade := int(255 - 205*(means[gi][ci]/maxMean))
			fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="%.1f" fill="rgb(%d,%d,255)"/>`+"\n",
				140+ci*cell+cell/2, y, radius, shade, shade)
		}
	}
	b.WriteString("</svg>\n")
	return writeFile(path, b.String())
}

func svgHeader(b *strings.Builder, width, height int) {
	fmt.Fprintf(b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		width, height, width, height)
	fmt.Fprintf(b, `<rect width="%d" height="%d" fill="white"/>`+"\n", width, height)
}

func groupColors(groups []string) map[string]string {
	names := map[string]struct{}{}
	for _, g := range groups {
		names[g] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for g := range names {
		sorted = append(sorted, g)
	}
	sort.Strings(sorted)
	out := make(map[string]string, len(sorted))
	for i, g := range sorted {
		out[g] = palette[i%len(palette)]
	}
	return out
}

func sortedGroupNames(colors map[string]string) []string {
	out := make([]string, 0, len(colors))
	for g := range colors {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

func rangeOf(m *matrix.Dense, row int) (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for c := 0; c < m.Cols; c++ {
		v := m.At(row, c)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func span(min, max float64) float64 {
	if max <= min {
		return 1
	}
	return max - min
}

func colsOf(m *matrix.Dense) int {
	if m == nil {
		return 0
	}
	return m.Cols
}

func escapeXML(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return replacer.Replace(s)
}
