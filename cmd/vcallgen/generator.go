package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Generator writes the dispatch shims described by a Config.
type Generator struct {
	Config *Config
	Stdout bool // print to standard output instead of writing files
}

// Result is one generated file.
type Result struct {
	Interface *Interface
	Path      string
	Source    []byte
}

// Run loads the interfaces and renders one file per interface
// concurrently. Files are written only if every interface renders.
func (g *Generator) Run(ctx context.Context) ([]Result, error) {
	ifaces, err := Load(g.Config)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(ifaces))
	eg, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	seen := make(map[string]string)
	for i, iface := range ifaces {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(g.Config.OutputDir(), FileName(iface))
			mu.Lock()
			if other, ok := seen[path]; ok {
				mu.Unlock()
				return errors.Errorf("%s and %s both generate %s", other, iface.Spec.Name, path)
			}
			seen[path] = iface.Spec.Name
			mu.Unlock()

			src, err := Emit(iface)
			if err != nil {
				return err
			}
			results[i] = Result{Interface: iface, Path: path, Source: src}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if g.Stdout {
		for _, r := range results {
			if _, err := os.Stdout.Write(r.Source); err != nil {
				return nil, err
			}
		}
		return results, nil
	}
	if err := os.MkdirAll(g.Config.OutputDir(), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating output directory")
	}
	for _, r := range results {
		if err := os.WriteFile(r.Path, r.Source, 0o644); err != nil {
			return nil, errors.Wrapf(err, "writing %s", r.Path)
		}
	}
	return results, nil
}
