package pipeline

import (
	"context"
	"errors"
	"fmt"

	"celltide/internal/logging"
	"celltide/internal/normalize"
)

// qcStage drops low-quality cells: too few detected genes or too much
// mitochondrial signal. Filtering is per cell, so it applies to the
// merged dataset exactly as it would per sample.
type qcStage struct{}

func (s *qcStage) Name() string { return StageQC }

func (s *qcStage) Prepare(ctx context.Context, st *State) error {
	if st.Data == nil {
		return errors.New("qc: no dataset loaded")
	}
	return nil
}

func (s *qcStage) Execute(ctx context.Context, st *State) error {
	before := st.Data.NCells()
	filtered := st.Data.FilterQC(st.Cfg.QC.MinGenes, st.Cfg.QC.MaxMitoFraction)
	if filtered.NCells() == 0 {
		return fmt.Errorf("qc removed all %d cells; thresholds too strict", before)
	}
	for _, sample := range filtered.SampleNames() {
		st.Log.Info("qc retained cells",
			logging.String(logging.FieldSample, sample),
			logging.Int("cells", len(filtered.CellsOfSample(sample))))
	}
	st.Log.Info("qc finished",
		logging.Int("before", before),
		logging.Int("after", filtered.NCells()))
	st.Data = filtered
	return nil
}

// dispersionBins is the number of mean-expression bins used to
// standardize gene dispersions when ranking variable features.
const dispersionBins = 20

// normalizeStage log-normalizes counts and picks the integration
// feature set from per-sample variable-feature rankings.
type normalizeStage struct{}

func (s *normalizeStage) Name() string { return StageNormalize }

func (s *normalizeStage) Prepare(ctx context.Context, st *State) error {
	if st.Data == nil || st.Data.Counts == nil {
		return errors.New("normalize: no counts available")
	}
	return nil
}

func (s *normalizeStage) Execute(ctx context.Context, st *State) error {
	cfg := st.Cfg.Normalize
	st.Data.LogNorm = normalize.LogNormalize(st.Data.Counts, cfg.ScaleFactor)

	// Rank variable features within each sample, then choose genes
	// ranked highly in both for integration.
	var rankings [][]int
	for _, sample := range st.Data.SampleNames() {
		cells := st.Data.CellsOfSample(sample)
		ranked := normalize.VariableFeatures(st.Data.LogNorm.SelectColumns(cells), dispersionBins)
		rankings = append(rankings, ranked)
	}
	features := normalize.SelectIntegrationFeatures(rankings, cfg.VariableFeatures, cfg.IntegrationFeatures)
	if len(features) == 0 {
		return errors.New("normalize: no integration features selected")
	}
	st.Data.Features = features
	st.Log.Info("normalization finished",
		logging.Float64("scale_factor", cfg.ScaleFactor),
		logging.Int("integration_features", len(features)))
	return nil
}
