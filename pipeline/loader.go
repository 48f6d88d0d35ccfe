package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/flowtag/internal/ctxlog"
)

// Loader reads pipeline definitions from HCL files.
type Loader struct{}

// NewLoader creates a new HCL pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot is a struct used to decode all top-level blocks from any file.
type fileRoot struct {
	Pipelines []*pipelineBlock `hcl:"pipeline,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

type pipelineBlock struct {
	Name   string        `hcl:"name,label"`
	Fields []string      `hcl:"fields"`
	Stages []*stageBlock `hcl:"stage,block"`
}

type stageBlock struct {
	Name    string `hcl:"name,label"`
	Use     string `hcl:"use"`
	GroupBy string `hcl:"group_by,optional"`
}

// Load parses every .hcl file under the given paths and merges the pipeline
// blocks found into a name-keyed map.
func (l *Loader) Load(ctx context.Context, paths ...string) (map[string]*Definition, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	defs := make(map[string]*Definition)

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		if err := l.mergeFile(hclFile, defs); err != nil {
			return nil, fmt.Errorf("file %s: %w", file, err)
		}
	}

	logger.Debug("HCL loading complete.", "pipelines", len(defs))
	return defs, nil
}

// LoadBytes parses pipeline blocks from an in-memory HCL document.
func (l *Loader) LoadBytes(ctx context.Context, filename string, src []byte) (map[string]*Definition, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL source %s: %w", filename, diags)
	}
	defs := make(map[string]*Definition)
	if err := l.mergeFile(hclFile, defs); err != nil {
		return nil, fmt.Errorf("source %s: %w", filename, err)
	}
	return defs, nil
}

// mergeFile decodes one parsed file and merges its pipelines into defs.
func (l *Loader) mergeFile(file *hcl.File, defs map[string]*Definition) error {
	var root fileRoot
	diags := gohcl.DecodeBody(file.Body, nil, &root)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL body: %w", diags)
	}

	for _, pb := range root.Pipelines {
		if _, exists := defs[pb.Name]; exists {
			return fmt.Errorf("duplicate pipeline %q", pb.Name)
		}
		def := &Definition{Name: pb.Name, Fields: pb.Fields}
		seen := make(map[string]struct{}, len(pb.Stages))
		for _, sb := range pb.Stages {
			if _, dup := seen[sb.Name]; dup {
				return fmt.Errorf("pipeline %q: duplicate stage %q", pb.Name, sb.Name)
			}
			seen[sb.Name] = struct{}{}
			def.Stages = append(def.Stages, &Stage{
				Name:    sb.Name,
				Use:     sb.Use,
				GroupBy: sb.GroupBy,
			})
		}
		defs[pb.Name] = def
	}
	return nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // It's not an error if a configured path doesn't exist.
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && filepath.Ext(p) == ".hcl" {
					add(p)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else {
			add(path)
		}
	}
	return allFiles, nil
}
