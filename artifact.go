package demoflow

import (
	"fmt"
	"os"
	"path/filepath"
)

// Standard artifact names within the generated output directory.
const (
	ArtifactDesignDoc = "design.md"
	ArtifactFrontend  = "app.py"

	// PublicURLFile records the endpoint discovered by a previous run.
	// It is picked up as an auxiliary archive member when present.
	PublicURLFile = "public_url.txt"
)

// Artifact is one (logical name, file path) member of an ArtifactSet.
type Artifact struct {
	Name string // Archive-relative name
	Path string // Absolute or output-relative source path
}

// ArtifactSet is the ordered bundle of generated files for one module:
// design document, backend module, generated tests, and the demo
// front-end entry point. Auxiliary members are optional extras included
// when present on disk.
type ArtifactSet struct {
	Module    string     // Module name the set was resolved for
	OutputDir string     // Directory the members live in
	Members   []Artifact // Required members, in archive order
	Auxiliary []Artifact // Optional members (e.g. a prior public_url.txt)
}

// ResolveArtifactSet builds the expected artifact layout for a module
// inside outputDir: design.md, <module>.py, test_<module>.py, app.py.
// It only resolves names; Validate checks the files exist.
func ResolveArtifactSet(outputDir, module string) (*ArtifactSet, error) {
	if module == "" {
		return nil, &PackagingError{Op: "resolve", Err: ErrModuleNameEmpty}
	}

	backend := module + ".py"
	tests := "test_" + module + ".py"

	set := &ArtifactSet{
		Module:    module,
		OutputDir: outputDir,
		Members: []Artifact{
			{Name: ArtifactDesignDoc, Path: filepath.Join(outputDir, ArtifactDesignDoc)},
			{Name: backend, Path: filepath.Join(outputDir, backend)},
			{Name: tests, Path: filepath.Join(outputDir, tests)},
			{Name: ArtifactFrontend, Path: filepath.Join(outputDir, ArtifactFrontend)},
		},
	}

	// A public URL recorded by a prior run rides along if it exists.
	sidePath := filepath.Join(outputDir, PublicURLFile)
	if info, err := os.Stat(sidePath); err == nil && info.Size() > 0 {
		set.Auxiliary = append(set.Auxiliary, Artifact{Name: PublicURLFile, Path: sidePath})
	}

	return set, nil
}

// EntryPoint returns the path to the generated app's entry point.
func (s *ArtifactSet) EntryPoint() string {
	return filepath.Join(s.OutputDir, ArtifactFrontend)
}

// Validate checks that every required member exists and is non-empty.
// A missing or empty member is a hard failure: it returns a
// PackagingError wrapping ErrArtifactMissing for the first offender.
func (s *ArtifactSet) Validate() error {
	for _, m := range s.Members {
		info, err := os.Stat(m.Path)
		if err != nil {
			return &PackagingError{
				Op:   "validate",
				Path: m.Path,
				Err:  fmt.Errorf("%w: %s", ErrArtifactMissing, m.Name),
			}
		}
		if info.Size() == 0 {
			return &PackagingError{
				Op:   "validate",
				Path: m.Path,
				Err:  fmt.Errorf("%w: %s is empty", ErrArtifactMissing, m.Name),
			}
		}
	}
	return nil
}

// All returns required members followed by auxiliary members.
func (s *ArtifactSet) All() []Artifact {
	all := make([]Artifact, 0, len(s.Members)+len(s.Auxiliary))
	all = append(all, s.Members...)
	all = append(all, s.Auxiliary...)
	return all
}
