package config

const (
	defaultWorkDir      = "~/.local/share/celltide/work"
	defaultLogDir       = "~/.local/share/celltide/logs"
	defaultReferenceDir = "~/.local/share/celltide/references"
	defaultOutputDir    = "~/celltide-output"

	defaultMinGenes        = 500
	defaultMaxMitoFraction = 0.10
	defaultMitoPrefix      = "MT-"

	defaultScaleFactor         = 10000
	defaultVariableFeatures    = 2000
	defaultIntegrationFeatures = 2000

	defaultIntegrateDims  = 20
	defaultKAnchor        = 5
	defaultKScore         = 30
	defaultKWeight        = 50
	defaultMinAnchorScore = 0.0

	defaultClusterDims = 20
	defaultResolution  = 0.8
	defaultSNNPrune    = 1.0 / 15.0
	defaultSeed        = 42

	defaultPruneMargin = 0.05
	defaultMaxPValue   = 0.05
	defaultMinLogFC    = 0.25
	defaultTopMarkers  = 25

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:      defaultWorkDir,
			LogDir:       defaultLogDir,
			ReferenceDir: defaultReferenceDir,
			OutputDir:    defaultOutputDir,
		},
		QC: QC{
			MinGenes:        defaultMinGenes,
			MaxMitoFraction: defaultMaxMitoFraction,
			MitoPrefix:      defaultMitoPrefix,
		},
		Normalize: Normalize{
			ScaleFactor:         defaultScaleFactor,
			VariableFeatures:    defaultVariableFeatures,
			IntegrationFeatures: defaultIntegrationFeatures,
		},
		Integrate: Integrate{
			Dims:           defaultIntegrateDims,
			KAnchor:        defaultKAnchor,
			KScore:         defaultKScore,
			KWeight:        defaultKWeight,
			MinAnchorScore: defaultMinAnchorScore,
		},
		Cluster: Cluster{
			Dims:            defaultClusterDims,
			Resolution:      defaultResolution,
			TreeResolutions: []float64{0.2, 0.4, 0.6, 0.8, 1.0, 1.2},
			SNNPrune:        defaultSNNPrune,
			Seed:            defaultSeed,
		},
		Annotate: Annotate{
			PerCluster:  true,
			PruneMargin: defaultPruneMargin,
			MaxPValue:   defaultMaxPValue,
			MinLogFC:    defaultMinLogFC,
			TopMarkers:  defaultTopMarkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
