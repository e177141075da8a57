package pipeline

import (
	"context"
	"errors"
	"fmt"

	"celltide/internal/integrate"
	"celltide/internal/logging"
	"celltide/internal/normalize"
)

// scaleClipMax caps per-gene z-scores so a handful of extreme cells
// cannot dominate the integration space.
const scaleClipMax = 10

// integrateStage aligns the two samples with anchor-based correction.
// The first configured sample acts as the reference; the corrected
// matrix covers integration features only, in merged cell order.
type integrateStage struct{}

func (s *integrateStage) Name() string { return StageIntegrate }

func (s *integrateStage) Prepare(ctx context.Context, st *State) error {
	if st.Data == nil || st.Data.LogNorm == nil {
		return errors.New("integrate: dataset not normalized")
	}
	if len(st.Data.Features) == 0 {
		return errors.New("integrate: no integration features")
	}
	if len(st.Data.SampleNames()) != 2 {
		return fmt.Errorf("integrate: expected 2 samples, have %d", len(st.Data.SampleNames()))
	}
	return nil
}

func (s *integrateStage) Execute(ctx context.Context, st *State) error {
	cfg := st.Cfg.Integrate
	samples := st.Data.SampleNames()

	// Scale each sample independently so batch-specific depth and
	// variance differences do not masquerade as biology.
	refCells := st.Data.CellsOfSample(samples[0])
	queryCells := st.Data.CellsOfSample(samples[1])
	refScaled := normalize.ScaleFeatures(st.Data.LogNorm.SelectColumns(refCells), st.Data.Features, scaleClipMax)
	queryScaled := normalize.ScaleFeatures(st.Data.LogNorm.SelectColumns(queryCells), st.Data.Features, scaleClipMax)

	res, err := integrate.Integrate(refScaled, queryScaled, integrate.Params{
		Dims:     cfg.Dims,
		KAnchor:  cfg.KAnchor,
		KScore:   cfg.KScore,
		KWeight:  cfg.KWeight,
		MinScore: cfg.MinAnchorScore,
	}, st.Cfg.Cluster.Seed)
	if err != nil {
		return err
	}
	if res.Corrected.Cols != st.Data.NCells() {
		return fmt.Errorf("integration changed cell count: %d vs %d", res.Corrected.Cols, st.Data.NCells())
	}
	st.Data.Corrected = res.Corrected
	st.Log.Info("integration finished",
		logging.Int("anchors", len(res.Anchors)),
		logging.Int("cells", res.Corrected.Cols))
	return nil
}
