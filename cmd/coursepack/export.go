package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mind-engage/coursepack/internal/content"
	"github.com/mind-engage/coursepack/internal/pkgexport"
	"github.com/mind-engage/coursepack/internal/render"
)

type exportFlags struct {
	out       string
	runtimeJS string
	style     string
	id        string
	assets    []string
}

func newExportCmd() *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export <document>",
		Short: "Build a SCORM 1.2 package zip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output zip (default <package id>.zip)")
	cmd.Flags().StringVar(&f.runtimeJS, "runtime-js", "", "runtime bundle to inline into index.html")
	cmd.Flags().StringVar(&f.style, "style", "", "stylesheet to inline into index.html")
	cmd.Flags().StringVar(&f.id, "id", "", "package identifier (default: document id, else a UUID)")
	cmd.Flags().StringArrayVar(&f.assets, "asset", nil, "extra file as <path-in-zip>=<local path>; repeatable")
	return cmd
}

func runExport(cmd *cobra.Command, docPath string, f exportFlags) error {
	doc, err := content.Load(docPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", docPath, err)
	}
	opts := pkgexport.Options{PackageID: f.id, Assets: map[string]io.Reader{}}
	if opts.RuntimeScript, err = readOptional(f.runtimeJS); err != nil {
		return err
	}
	if opts.Style, err = readOptional(f.style); err != nil {
		return err
	}
	for _, a := range f.assets {
		name, local, ok := strings.Cut(a, "=")
		if !ok {
			name, local = filepath.Base(a), a
		}
		fh, err := os.Open(local)
		if err != nil {
			return fmt.Errorf("asset %s: %w", a, err)
		}
		defer fh.Close()
		opts.Assets[name] = fh
	}

	zipped, id, err := pkgexport.Build(doc, render.Must(), opts)
	if err != nil {
		return err
	}
	out := f.out
	if out == "" {
		out = id + ".zip"
	}
	if err := os.WriteFile(out, zipped, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (package %s, %d bytes)\n", out, id, len(zipped))
	return nil
}

func readOptional(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	return string(b), nil
}
