// Package provider holds the region sets of many views, loaded from a
// features directory, behind a single lock.
package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TFMV/regions/pkg/descriptors"
	"github.com/TFMV/regions/pkg/metrics"
	"github.com/TFMV/regions/pkg/regions"
)

const (
	// FeatureExt is the extension of feature files
	FeatureExt = ".feat"
	// DescriptorExt is the extension of uncompressed descriptor files
	DescriptorExt = ".desc"
)

// ErrUnknownView is returned for views that have not been loaded
var ErrUnknownView = errors.New("unknown view")

// Options configures a Provider
type Options struct {
	// Directory holding <view>.feat and <view>.desc[.zst|.lz4]
	Dir string
	// Registered describer used to create the region sets
	Describer string
	// Compression of descriptor files written by Save
	Compression descriptors.Compression
	// Maximum number of views loaded or saved concurrently
	Workers int
	Logger  *zap.Logger
	Metrics *metrics.Collector
}

// Provider maps view ids to their region sets.
type Provider struct {
	mu      sync.RWMutex
	opts    Options
	regions map[string]regions.Regions
	log     *zap.Logger
	metrics *metrics.Collector
}

// New creates an empty provider
func New(opts Options) (*Provider, error) {
	if opts.Dir == "" {
		return nil, errors.New("features directory is required")
	}
	if _, err := regions.NewByName(opts.Describer); err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector(false)
	}
	return &Provider{
		opts:    opts,
		regions: make(map[string]regions.Regions),
		log:     opts.Logger.With(zap.String("describer", opts.Describer)),
		metrics: opts.Metrics,
	}, nil
}

// Describer returns the describer of the held region sets
func (p *Provider) Describer() string { return p.opts.Describer }

// FeaturePath returns the feature file of view
func (p *Provider) FeaturePath(view string) string {
	return filepath.Join(p.opts.Dir, view+FeatureExt)
}

// DescriptorPath returns the existing descriptor file of view, trying the
// uncompressed, zstd and lz4 names in that order. When none exists it
// returns the name Save would write.
func (p *Provider) DescriptorPath(view string) string {
	base := filepath.Join(p.opts.Dir, view+DescriptorExt)
	for _, c := range []descriptors.Compression{
		descriptors.CompressionNone,
		descriptors.CompressionZstd,
		descriptors.CompressionLZ4,
	} {
		if _, err := os.Stat(base + c.Extension()); err == nil {
			return base + c.Extension()
		}
	}
	return base + p.opts.Compression.Extension()
}

// Discover lists the views that have a feature file in the features directory
func (p *Provider) Discover() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(p.opts.Dir, "*"+FeatureExt))
	if err != nil {
		return nil, err
	}
	views := make([]string, 0, len(matches))
	for _, m := range matches {
		views = append(views, strings.TrimSuffix(filepath.Base(m), FeatureExt))
	}
	sort.Strings(views)
	return views, nil
}

// Load reads the region sets of views concurrently. Views that loaded are
// kept even when others fail; the returned error joins the failures.
func (p *Provider) Load(ctx context.Context, views []string) error {
	loaded := make([]regions.Regions, len(views))
	errs := make([]error, len(views))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, view := range views {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			loaded[i], errs[i] = p.loadView(view)
			return nil
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	for i, view := range views {
		if errs[i] == nil {
			p.regions[view] = loaded[i]
		}
	}
	p.recordHoldingsLocked()
	p.mu.Unlock()

	return errors.Join(errs...)
}

func (p *Provider) loadView(view string) (regions.Regions, error) {
	start := time.Now()
	r, err := regions.NewByName(p.opts.Describer)
	if err != nil {
		return nil, err
	}

	featPath, descPath := p.FeaturePath(view), p.DescriptorPath(view)
	err = r.Load(featPath, descPath)
	p.metrics.RecordOperation(p.opts.Describer, metrics.LoadOperation, err)
	if err != nil {
		p.log.Error("Failed to load regions",
			zap.String("view", view),
			zap.String("features", featPath),
			zap.String("descriptors", descPath),
			zap.Error(err))
		return nil, fmt.Errorf("view %s: %w", view, err)
	}

	elapsed := time.Since(start)
	p.metrics.RecordLoadLatency(p.opts.Describer, elapsed)
	p.log.Debug("Regions loaded",
		zap.String("view", view),
		zap.Int("regions", r.RegionCount()),
		zap.Duration("duration", elapsed))
	return r, nil
}

// Get returns the region set of view
func (p *Provider) Get(view string) (regions.Regions, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.getLocked(view)
}

func (p *Provider) getLocked(view string) (regions.Regions, error) {
	r, ok := p.regions[view]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownView, view)
	}
	return r, nil
}

// Views returns the loaded view ids, sorted
func (p *Provider) Views() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	views := make([]string, 0, len(p.regions))
	for view := range p.regions {
		views = append(views, view)
	}
	sort.Strings(views)
	return views
}

// Put stores r as the region set of view, replacing any previous one
func (p *Provider) Put(view string, r regions.Regions) error {
	proto, err := regions.NewByName(p.opts.Describer)
	if err != nil {
		return err
	}
	if !regions.SameSpecialization(proto, r) {
		return fmt.Errorf("%w: view %s is %s, provider holds %s",
			regions.ErrTypeMismatch, view, r.Signature(), proto.Signature())
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regions[view] = r
	p.recordHoldingsLocked()
	return nil
}

// Save writes every held region set to the features directory, descriptors
// compressed with the configured compression.
func (p *Provider) Save(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	views := make([]string, 0, len(p.regions))
	for view := range p.regions {
		views = append(views, view)
	}
	errs := make([]error, len(views))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, view := range views {
		r := p.regions[view]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			descPath := filepath.Join(p.opts.Dir, view+DescriptorExt+p.opts.Compression.Extension())
			err := r.Save(p.FeaturePath(view), descPath)
			p.metrics.RecordOperation(p.opts.Describer, metrics.SaveOperation, err)
			if err != nil {
				p.log.Error("Failed to save regions", zap.String("view", view), zap.Error(err))
				errs[i] = fmt.Errorf("view %s: %w", view, err)
				return nil
			}
			p.removeStaleDescriptors(view, descPath)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// FilterReconstructed replaces the region set of view by the regions listed
// in featuresInImage. It returns the 3D point id of each kept region and the
// map from original to filtered region index.
func (p *Provider) FilterReconstructed(view string, featuresInImage []regions.FeatureInImage) ([]regions.IndexT, map[regions.IndexT]regions.IndexT, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, err := p.getLocked(view)
	if err != nil {
		return nil, nil, err
	}

	seen := roaring.New()
	duplicates := 0
	for _, fi := range featuresInImage {
		if !seen.CheckedAdd(fi.FeatureIndex) {
			duplicates++
		}
	}
	if duplicates > 0 {
		p.log.Warn("Duplicate feature indices in filter",
			zap.String("view", view),
			zap.Int("duplicates", duplicates),
			zap.Uint64("distinct", seen.GetCardinality()))
	}

	filtered, points, fullToLocal, err := r.CreateFilteredRegions(featuresInImage)
	p.metrics.RecordOperation(p.opts.Describer, metrics.FilterOperation, err)
	if err != nil {
		return nil, nil, fmt.Errorf("view %s: %w", view, err)
	}
	p.regions[view] = filtered
	p.recordHoldingsLocked()

	p.log.Info("Regions filtered",
		zap.String("view", view),
		zap.Int("before", r.RegionCount()),
		zap.Int("after", filtered.RegionCount()))
	return points, fullToLocal, nil
}

// ClearDescriptors drops the descriptors of every held region set
func (p *Provider) ClearDescriptors() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.regions {
		r.ClearDescriptors()
	}
}

// Distance returns the squared descriptor distance between region i of
// viewA and region j of viewB.
func (p *Provider) Distance(viewA string, i int, viewB string, j int) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	a, err := p.getLocked(viewA)
	if err != nil {
		return 0, err
	}
	b, err := p.getLocked(viewB)
	if err != nil {
		return 0, err
	}
	return a.SquaredDescriptorDistance(i, b, j)
}

// removeStaleDescriptors deletes descriptor files of view other than keep,
// which DescriptorPath could otherwise pick up on the next load.
func (p *Provider) removeStaleDescriptors(view, keep string) {
	base := filepath.Join(p.opts.Dir, view+DescriptorExt)
	for _, c := range []descriptors.Compression{
		descriptors.CompressionNone,
		descriptors.CompressionZstd,
		descriptors.CompressionLZ4,
	} {
		path := base + c.Extension()
		if path == keep {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.log.Warn("Failed to remove stale descriptors", zap.String("path", path), zap.Error(err))
		}
	}
}

func (p *Provider) recordHoldingsLocked() {
	total := 0
	for _, r := range p.regions {
		total += r.RegionCount()
	}
	p.metrics.RecordHoldings(len(p.regions), total)
}
