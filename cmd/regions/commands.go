package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/regions/pkg/api"
	"github.com/TFMV/regions/pkg/archive"
	"github.com/TFMV/regions/pkg/descriptors"
	"github.com/TFMV/regions/pkg/provider"
	"github.com/TFMV/regions/pkg/regions"
)

// loadViews creates a provider over the features directory and loads views
func (e *env) loadViews(ctx context.Context, views ...string) (*provider.Provider, error) {
	p, err := e.provider()
	if err != nil {
		return nil, err
	}
	if err := p.Load(ctx, views); err != nil {
		return nil, err
	}
	return p, nil
}

func infoCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "info VIEW",
		Short: "Show the region set of a view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view := args[0]
			p, err := e.loadViews(cmd.Context(), view)
			if err != nil {
				return err
			}
			r, err := p.Get(view)
			if err != nil {
				return err
			}

			fmt.Fprintf(e.out, "View:              %s\n", view)
			fmt.Fprintf(e.out, "Describer:         %s\n", p.Describer())
			fmt.Fprintf(e.out, "Features:          %s\n", p.FeaturePath(view))
			fmt.Fprintf(e.out, "Descriptors:       %s\n", p.DescriptorPath(view))
			fmt.Fprintf(e.out, "Regions:           %d\n", r.RegionCount())
			fmt.Fprintf(e.out, "Descriptor type:   %s[%d]\n", r.TypeID(), r.DescriptorLength())
			fmt.Fprintf(e.out, "Binary:            %t\n", r.IsBinary())
			return nil
		},
	}
}

func describersCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "describers",
		Short: "List the registered describers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range regions.Names() {
				r, err := regions.NewByName(name)
				if err != nil {
					return err
				}
				kind := "scalar"
				if r.IsBinary() {
					kind = "binary"
				}
				fmt.Fprintf(e.out, "%-12s %-8s %-8s %4d\n", name, kind, r.TypeID(), r.DescriptorLength())
			}
			return nil
		},
	}
}

func distanceCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "distance VIEW_A I VIEW_B J",
		Short: "Print the squared descriptor distance of two regions",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewA, viewB := args[0], args[2]
			i, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid region index %q: %w", args[1], err)
			}
			j, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("invalid region index %q: %w", args[3], err)
			}

			views := []string{viewA}
			if viewB != viewA {
				views = append(views, viewB)
			}
			p, err := e.loadViews(cmd.Context(), views...)
			if err != nil {
				return err
			}
			d, err := p.Distance(viewA, i, viewB, j)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, strconv.FormatFloat(d, 'g', -1, 64))
			return nil
		},
	}
}

// readFeaturesInImage parses "featureIndex point3DId" lines
func readFeaturesInImage(r io.Reader) ([]regions.FeatureInImage, error) {
	var out []regions.FeatureInImage
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected 2 fields, got %d", line, len(fields))
		}
		feature, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		point, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, regions.FeatureInImage{
			FeatureIndex: regions.IndexT(feature),
			Point3DID:    regions.IndexT(point),
		})
	}
	return out, scanner.Err()
}

func filterCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "filter VIEW PAIRS OUT_DIR",
		Short: "Keep the regions of a view that observe reconstructed points",
		Long: `filter reads PAIRS, a text file of "featureIndex point3DId" lines, keeps the
listed regions of VIEW ordered by feature index and writes them to OUT_DIR.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, pairsPath, outDir := args[0], args[1], args[2]

			f, err := os.Open(pairsPath)
			if err != nil {
				return err
			}
			pairs, err := readFeaturesInImage(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", pairsPath, err)
			}
			regions.SortFeaturesInImage(pairs)

			p, err := e.loadViews(cmd.Context(), view)
			if err != nil {
				return err
			}
			_, fullToLocal, err := p.FilterReconstructed(view, pairs)
			if err != nil {
				return err
			}
			filtered, err := p.Get(view)
			if err != nil {
				return err
			}

			out, err := e.providerFor(outDir, e.cfg.Describer)
			if err != nil {
				return err
			}
			if err := out.Put(view, filtered); err != nil {
				return err
			}
			if err := out.Save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Kept %d regions (%d distinct features) in %s\n",
				filtered.RegionCount(), len(fullToLocal), outDir)
			return nil
		},
	}
}

func compressCmd(e *env) *cobra.Command {
	var codec string
	cmd := &cobra.Command{
		Use:   "compress VIEW",
		Short: "Rewrite the descriptor file of a view with another compression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view := args[0]
			c, err := descriptors.ParseCompression(codec)
			if err != nil {
				return err
			}
			e.cfg.DescriptorCompression = c.String()

			p, err := e.loadViews(cmd.Context(), view)
			if err != nil {
				return err
			}
			before := p.DescriptorPath(view)
			if err := p.Save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "%s -> %s\n", before, p.DescriptorPath(view))
			return nil
		},
	}
	cmd.Flags().StringVar(&codec, "codec", "zstd", "descriptor compression (none, zstd, lz4)")
	return cmd
}

func exportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "export VIEW",
		Short: "Write the region set of a view as a JSON archive to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view := args[0]
			p, err := e.loadViews(cmd.Context(), view)
			if err != nil {
				return err
			}
			r, err := p.Get(view)
			if err != nil {
				return err
			}
			return archive.Write(e.out, r)
		},
	}
}

func importCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import ARCHIVE VIEW",
		Short: "Write the region set of a JSON archive as the files of a view",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archivePath, view := args[0], args[1]

			f, err := os.Open(archivePath)
			if err != nil {
				return err
			}
			defer f.Close()

			r, h, err := archive.Read(bufio.NewReader(f))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", archivePath, err)
			}
			p, err := e.providerFor(e.cfg.FeaturesDir, h.Describer)
			if err != nil {
				return err
			}
			if err := p.Put(view, r); err != nil {
				return err
			}
			if err := p.Save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Imported %d %s regions as %s\n", h.Count, h.Describer, view)
			return nil
		},
	}
}

func serveCmd(e *env) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the views of the features directory over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				e.cfg.HTTP.Host = host
			}
			if cmd.Flags().Changed("port") {
				e.cfg.HTTP.Port = port
			}

			p, err := e.provider()
			if err != nil {
				return err
			}
			views, err := p.Discover()
			if err != nil {
				return err
			}
			if err := p.Load(cmd.Context(), views); err != nil {
				// Views that failed are logged by the provider; serve the rest.
				e.log.Warn("Some views failed to load", zap.Error(err))
			}
			e.log.Info("Views loaded", zap.Int("views", len(p.Views())))

			server := api.NewServer(p, e.metrics, e.log, api.ServerOptions{
				ReadTimeout:  e.cfg.HTTP.ReadTimeout,
				WriteTimeout: e.cfg.HTTP.WriteTimeout,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start(e.cfg.Addr())
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
				e.log.Info("Shutting down inspection server")
				return server.Shutdown()
			}
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "server host (overrides http.host)")
	cmd.Flags().IntVar(&port, "port", 0, "server port (overrides http.port)")
	return cmd
}
