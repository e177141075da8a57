package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"celltide/internal/config"
)

// WriteReferences writes the profile sets and taxonomy the configured
// annotation strategies expect into the config's reference directory.
// Profiles cover the first five marker genes of each synthetic type.
func WriteReferences(t testing.TB, cfg *config.Config) {
	t.Helper()
	if err := os.MkdirAll(cfg.Paths.ReferenceDir, 0o755); err != nil {
		t.Fatalf("mkdir references: %v", err)
	}

	sets := append([]string{cfg.Annotate.Reference}, cfg.Annotate.Atlases...)
	for si, name := range sets {
		writeScenarioFile(t, filepath.Join(cfg.Paths.ReferenceDir, name+".tsv"), profileTSV(si))
	}

	taxonomy := `[
  {"tissue": "Brain", "cellType": "Neuron", "markers": ["NEU001", "NEU002", "NEU003", "NEU004", "NEU005"]},
  {"tissue": "Brain", "cellType": "Astrocyte", "markers": ["AST001", "AST002", "AST003", "AST004", "AST005"]},
  {"tissue": "Brain", "cellType": "Microglia", "markers": ["MIC001", "MIC002", "MIC003", "MIC004", "MIC005"]},
  {"tissue": "Liver", "cellType": "Hepatocyte", "markers": ["ALB", "APOA1"]}
]
`
	writeScenarioFile(t, filepath.Join(cfg.Paths.ReferenceDir, cfg.Annotate.Taxonomy+".json"), taxonomy)
}

// profileTSV renders one profile set. The variant index perturbs the
// values slightly so the atlases are distinct files with the same
// structure.
func profileTSV(variant int) string {
	prefixes := []string{"NEU", "AST", "MIC"}
	var b strings.Builder
	b.WriteString("gene")
	for _, label := range TypeNames {
		b.WriteString("\t" + label)
	}
	b.WriteString("\n")
	for ti, prefix := range prefixes {
		for j := 1; j <= 5; j++ {
			fmt.Fprintf(&b, "%s%03d", prefix, j)
			for li := range TypeNames {
				v := 0.2
				if li == ti {
					v = 8.0 - float64(j)*0.3 - float64(variant)*0.1
				}
				fmt.Fprintf(&b, "\t%.2f", v)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
