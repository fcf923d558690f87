package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"drrm-api/internal/mapstate"

	"github.com/spf13/cobra"
)

func newKMLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kml",
		Short: "Offline KML tools",
	}
	cmd.AddCommand(newKMLInspectCmd())
	return cmd
}

// inspect 与上传接口走同一条管线，只是地图状态在进程内
func newKMLInspectCmd() *cobra.Command {
	var policy string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <file>...",
		Short: "Load files through the upload pipeline and print the result",
		Long: `Run KML/KMZ files through the same upload pipeline the server
uses and print the resulting layers, errors and viewport.

Examples:
  drrmctl kml inspect hazards.kml evacuation.kmz
  drrmctl kml inspect --fit each --json *.kml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := mapstate.NewMap(mapstate.DefaultOptions(), nil)
			defer m.Close()
			reg := mapstate.NewRegistry(m, nil)
			p := mapstate.NewPipeline(reg, mapstate.WithFitPolicy(mapstate.ParseFitPolicy(policy)))

			files := make([]mapstate.File, 0, len(args))
			for _, path := range args {
				files = append(files, diskFile(path))
			}
			res := p.Upload(context.Background(), files)
			vp := m.Viewport()
			res.Viewport = &vp
			return printUpload(cmd.OutOrStdout(), res, asJSON)
		},
	}
	cmd.Flags().StringVar(&policy, "fit", string(mapstate.FitFirst), "fit policy: first, each or none")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func diskFile(path string) mapstate.File {
	return mapstate.File{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

func printUpload(w io.Writer, res mapstate.UploadResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCOLOR\tFEATURES\tBOUNDS")
	for _, l := range res.Added {
		bounds := "-"
		if l.Bounds != nil {
			b := l.Bounds
			bounds = fmt.Sprintf("%.5f,%.5f %.5f,%.5f", b[1], b[0], b[3], b[2])
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", l.Name, l.Color, l.Features, bounds)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	if res.Viewport != nil {
		fmt.Fprintf(w, "viewport: %.5f,%.5f z%d\n", res.Viewport.Center.Lat, res.Viewport.Center.Lon, res.Viewport.Zoom)
	}
	return nil
}

func readAll(r io.Reader) ([]byte, error) { return io.ReadAll(io.LimitReader(r, 4<<20)) }
