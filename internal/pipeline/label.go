package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"celltide/internal/annotate"
	"celltide/internal/logging"
	"celltide/internal/reference"
	"celltide/internal/report"
)

// annotateStage runs the four labeling strategies side by side and
// writes their tables and plots for the curator.
type annotateStage struct{}

func (s *annotateStage) Name() string { return StageAnnotate }

func (s *annotateStage) Prepare(ctx context.Context, st *State) error {
	if st.Data == nil {
		return errors.New("annotate: no dataset")
	}
	if _, ok := st.Data.ActiveClustering(); !ok {
		return errors.New("annotate: no active clustering")
	}
	// All references must resolve before any strategy starts; a missing
	// reference fails the stage up front rather than mid-run.
	_, err := s.buildStrategies(st)
	return err
}

func (s *annotateStage) Execute(ctx context.Context, st *State) error {
	assign, _ := st.Data.ActiveClustering()
	strategies, err := s.buildStrategies(st)
	if err != nil {
		return err
	}

	results, err := annotate.Run(ctx, st.Log, st.Data, assign, strategies)
	if err != nil {
		return err
	}

	outDir := st.Cfg.Paths.OutputDir
	for _, res := range results {
		if len(res.Markers) == 0 {
			continue
		}
		path := filepath.Join(outDir, "markers_"+sanitizeName(res.Strategy)+".tsv")
		if err := report.WriteMarkersTSV(path, res.Markers); err != nil {
			return err
		}
		if err := st.RecordArtifact(ctx, StageAnnotate, "markers_tsv", path); err != nil {
			return err
		}
		if len(res.FullMarkers) == 0 {
			continue
		}
		fullPath := filepath.Join(outDir, "markers_"+sanitizeName(res.Strategy)+"_full.tsv")
		if err := report.WriteMarkersTSV(fullPath, res.FullMarkers); err != nil {
			return err
		}
		if err := st.RecordArtifact(ctx, StageAnnotate, "markers_full_tsv", fullPath); err != nil {
			return err
		}
	}

	annPath := filepath.Join(outDir, "annotations.tsv")
	if err := report.WriteAnnotationsTSV(annPath, results, nil); err != nil {
		return err
	}
	if err := st.RecordArtifact(ctx, StageAnnotate, "annotations_tsv", annPath); err != nil {
		return err
	}

	if genes := panelGenes(st.Cfg.Annotate.Panel); len(genes) > 0 {
		dotPath := filepath.Join(outDir, "marker_panel.svg")
		if err := report.DotPlotSVG(dotPath, st.Data, assign, genes); err != nil {
			return err
		}
		if err := st.RecordArtifact(ctx, StageAnnotate, "marker_panel_svg", dotPath); err != nil {
			return err
		}
	}

	for _, res := range results {
		for _, c := range sortedLabelKeys(res.Labels) {
			a := res.Labels[c]
			st.Log.Info("cluster annotated",
				logging.String(logging.FieldStrategy, res.Strategy),
				logging.Int(logging.FieldCluster, c),
				logging.String("label", a.Label),
				logging.Float64("score", a.Score),
				logging.Bool("pruned", a.Pruned))
		}
	}
	return nil
}

// buildStrategies resolves references and assembles the strategy set
// in a fixed order: primary reference correlation, atlas correlations,
// taxonomy enrichment, DE markers.
func (s *annotateStage) buildStrategies(st *State) ([]annotate.Strategy, error) {
	cfg := st.Cfg.Annotate
	registry, err := reference.NewRegistry(st.Cfg.Paths.ReferenceDir)
	if err != nil {
		return nil, err
	}

	primary, err := registry.ProfileSet(cfg.Reference)
	if err != nil {
		return nil, err
	}
	refcor := annotate.NewRefCor("refcor:"+primary.Name, primary, cfg.PruneMargin, 0)
	if !cfg.PerCluster {
		refcor = refcor.PerCell()
	}
	strategies := []annotate.Strategy{refcor}

	var atlases []*reference.ProfileSet
	for _, name := range cfg.Atlases {
		atlas, err := registry.ProfileSet(name)
		if err != nil {
			return nil, err
		}
		atlases = append(atlases, atlas)
	}
	strategies = append(strategies, annotate.NewMultiRef(atlases, cfg.PruneMargin, 0)...)

	taxonomy, err := registry.Taxonomy(cfg.Taxonomy)
	if err != nil {
		return nil, err
	}
	taxonomy, err = taxonomy.RestrictTissues(cfg.Tissues)
	if err != nil {
		return nil, err
	}
	strategies = append(strategies, annotate.NewEnrich(taxonomy, cfg.MaxPValue, cfg.MinLogFC))

	strategies = append(strategies, annotate.NewDEMarkers(cfg.Panel, cfg.MaxPValue, cfg.MinLogFC, cfg.TopMarkers))
	return strategies, nil
}

// finalizeStage applies the curator's merges and names, then writes
// the terminal outputs: labeled embedding table and plots.
type finalizeStage struct{}

func (s *finalizeStage) Name() string { return StageFinalize }

func (s *finalizeStage) Prepare(ctx context.Context, st *State) error {
	if st.Data == nil {
		return errors.New("finalize: no dataset")
	}
	if _, ok := st.Data.ActiveClustering(); !ok {
		return errors.New("finalize: no active clustering")
	}
	if st.Data.Embedding == nil {
		return errors.New("finalize: no embedding")
	}
	return nil
}

func (s *finalizeStage) Execute(ctx context.Context, st *State) error {
	assign, _ := st.Data.ActiveClustering()
	merged, labels, err := annotate.FinalLabels(assign, st.Cfg.Labels.Names, st.Cfg.Labels.Merge)
	if err != nil {
		return err
	}
	if err := st.Data.SetClustering("final", merged); err != nil {
		return err
	}
	st.Data.Active = "final"
	st.Data.FinalLabels = labels

	outDir := st.Cfg.Paths.OutputDir
	embPath := filepath.Join(outDir, "embedding.tsv")
	if err := report.WriteEmbeddingTSV(embPath, st.Data, st.Data.Embedding, merged, labels); err != nil {
		return err
	}
	if err := st.RecordArtifact(ctx, StageFinalize, "embedding_tsv", embPath); err != nil {
		return err
	}

	plots := []struct {
		file   string
		title  string
		groups []string
	}{
		{"embedding_by_sample.svg", "Cells by sample", st.Data.Samples},
		{"embedding_by_cluster.svg", "Cells by cluster", clusterPerCell(assign)},
		{"embedding_by_label.svg", "Cells by final label", labelPerCell(merged, labels)},
	}
	for _, p := range plots {
		path := filepath.Join(outDir, p.file)
		if err := report.ScatterSVG(path, p.title, st.Data.Embedding, p.groups); err != nil {
			return err
		}
		if err := st.RecordArtifact(ctx, StageFinalize, "embedding_svg", path); err != nil {
			return err
		}
	}

	for _, c := range sortedLabelKeysString(labels) {
		st.Log.Info("final label",
			logging.Int(logging.FieldCluster, c),
			logging.String("label", labels[c]))
	}
	return nil
}

func sortedLabelKeys(m map[int]annotate.Assignment) []int {
	out := make([]int, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

func sortedLabelKeysString(m map[int]string) []int {
	out := make([]int, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

func labelPerCell(assign []int, labels map[int]string) []string {
	out := make([]string, len(assign))
	for i, c := range assign {
		out[i] = labels[c]
	}
	return out
}

// clusterPerCell renders pre-merge cluster ids as plot groups.
func clusterPerCell(assign []int) []string {
	out := make([]string, len(assign))
	for i, c := range assign {
		out[i] = "cluster " + strconv.Itoa(c)
	}
	return out
}

func panelGenes(panel map[string][]string) []string {
	var keys []string
	for k := range panel {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	seen := map[string]struct{}{}
	for _, k := range keys {
		for _, g := range panel[k] {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			out = append(out, g)
		}
	}
	return out
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
