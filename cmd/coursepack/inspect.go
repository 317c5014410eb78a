package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mind-engage/coursepack/internal/content"
	"github.com/mind-engage/coursepack/internal/render"
	"github.com/mind-engage/coursepack/internal/runtime"
)

type inspectFlags struct {
	state     string
	stateFile string
	html      string
}

func newInspectCmd() *cobra.Command {
	var f inspectFlags
	cmd := &cobra.Command{
		Use:   "inspect <document>",
		Short: "Summarize a document, optionally replaying saved learner state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.state, "state", "", "suspend data blob to restore")
	cmd.Flags().StringVar(&f.stateFile, "state-file", "", "file holding the suspend data blob")
	cmd.Flags().StringVar(&f.html, "html", "", "also render the restored page to this file")
	return cmd
}

func runInspect(cmd *cobra.Command, docPath string, f inspectFlags) error {
	doc, err := content.Load(docPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", docPath, err)
	}
	blob := f.state
	if f.stateFile != "" {
		if blob, err = readOptional(f.stateFile); err != nil {
			return err
		}
	}

	rt := runtime.New(doc, nil, runtime.WithInitialState(blob))
	rt.Start()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  (%d sections, progress %d%%, status %s)\n", doc.Title, len(doc.Sections), rt.Progress(), rt.LessonStatus())
	if m, ok := doc.Mastery(); ok {
		fmt.Fprintf(out, "mastery score %d\n", m)
	}
	printSections(out, doc, rt)

	if f.html == "" {
		return nil
	}
	fh, err := os.Create(f.html)
	if err != nil {
		return err
	}
	defer fh.Close()
	return render.Must().Page(fh, doc, render.PageOptions{
		PackageID: doc.ID,
		Markers:   rt.Markers(),
		Views:     rt.Sections(),
		Progress:  rt.Progress(),
	})
}

func printSections(w io.Writer, doc *content.Document, rt *runtime.Runtime) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSECTION\tSTATUS\tACTIVITIES\tPAGE")
	for _, v := range rt.Sections() {
		s := doc.Sections[v.Index]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d/%d\n", v.Index+1, s.Title, v.Status, len(s.Activities), v.Page+1, v.Pages)
	}
	tw.Flush()
}
