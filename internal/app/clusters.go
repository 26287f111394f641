package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/steward/internal/api"
	"github.com/giantswarm/steward/internal/cluster"
	"github.com/giantswarm/steward/internal/config"
	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/software"
	"github.com/giantswarm/steward/pkg/logging"
)

const clustersSubsystem = "Clusters"

// customizers adjust member specs per member type.
var customizers = map[string]cluster.Customizer{
	software.ElasticsearchType: software.ElasticsearchMember,
}

// ClusterMetrics is the part of the metrics the controller reports to.
type ClusterMetrics interface {
	cluster.Metrics
	ForgetCluster(cluster string)
}

// ClusterController owns the clusters created from definitions. It
// implements reconciler.ClusterController.
type ClusterController struct {
	factory       cluster.Factory
	metrics       ClusterMetrics
	entityOptions []entity.Option

	mu       sync.Mutex
	clusters map[string]*managedCluster
}

type managedCluster struct {
	cluster *cluster.Cluster
	def     config.ClusterDefinition
}

// NewClusterController creates a controller building members through
// factory. metrics may be nil.
func NewClusterController(factory cluster.Factory, metrics ClusterMetrics, entityOptions ...entity.Option) *ClusterController {
	return &ClusterController{
		factory:       factory,
		metrics:       metrics,
		entityOptions: entityOptions,
		clusters:      make(map[string]*managedCluster),
	}
}

func (c *ClusterController) options(def config.ClusterDefinition) cluster.Options {
	opts := cluster.Options{
		Name: def.Name,
		Template: entity.Spec{
			Type:   def.MemberType,
			Config: def.Config,
		},
		Factory:        c.factory,
		Customizer:     customizers[def.MemberType],
		NameTemplate:   def.NameTemplate,
		MinSuccess:     def.MinSuccess,
		ScaleTimeout:   def.ScaleTimeout,
		MaxConcurrency: def.MaxConcurrency,
		EntityOptions:  c.entityOptions,
	}
	if c.metrics != nil {
		opts.Metrics = c.metrics
	}
	return opts
}

// Create builds the cluster of def without starting it.
func (c *ClusterController) Create(def config.ClusterDefinition) (*cluster.Cluster, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.clusters[def.Name]; exists {
		return nil, fmt.Errorf("cluster %s already exists", def.Name)
	}
	cl, err := cluster.New(c.options(def))
	if err != nil {
		return nil, err
	}
	c.clusters[def.Name] = &managedCluster{cluster: cl, def: def}
	logging.Info(clustersSubsystem, "Created cluster %s of %s members", def.Name, def.MemberType)
	return cl, nil
}

// ApplyCluster implements reconciler.ClusterController. A new cluster is
// started with def.InitialSize members. An existing one drops its failed
// members and is resized to it, restarting the cluster when an earlier
// attempt left it ON_FIRE. A changed member type, name template or scaling
// setting recreates the cluster.
func (c *ClusterController) ApplyCluster(ctx context.Context, def config.ClusterDefinition) error {
	c.mu.Lock()
	existing, ok := c.clusters[def.Name]
	c.mu.Unlock()

	if ok && requiresRecreate(existing.def, def) {
		logging.Info(clustersSubsystem, "Definition of %s changed shape, recreating the cluster", def.Name)
		if err := c.RemoveCluster(ctx, def.Name); err != nil {
			return err
		}
		ok = false
	}

	if ok {
		c.mu.Lock()
		existing.def = def
		c.mu.Unlock()

		result, err := existing.cluster.Converge(ctx, def.InitialSize)
		logScale(result)
		return err
	}

	cl, err := c.Create(def)
	if err != nil {
		return err
	}
	result, err := cl.Start(ctx, def.InitialSize)
	logScale(result)
	return err
}

func requiresRecreate(old, new config.ClusterDefinition) bool {
	return old.MemberType != new.MemberType ||
		old.NameTemplate != new.NameTemplate ||
		old.MinSuccess != new.MinSuccess ||
		old.ScaleTimeout != new.ScaleTimeout ||
		old.MaxConcurrency != new.MaxConcurrency ||
		!sameConfig(old.Config, new.Config)
}

func sameConfig(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || fmt.Sprint(v) != fmt.Sprint(w) {
			return false
		}
	}
	return true
}

func logScale(result *cluster.ScaleResult) {
	if result == nil || len(result.Members) == 0 {
		return
	}
	logging.Info(clustersSubsystem, "Cluster %s %s: %d of %d members succeeded",
		result.Cluster, result.Operation, len(result.Succeeded()), result.Requested)
}

// RemoveCluster implements reconciler.ClusterController.
func (c *ClusterController) RemoveCluster(ctx context.Context, name string) error {
	c.mu.Lock()
	mc, ok := c.clusters[name]
	delete(c.clusters, name)
	c.mu.Unlock()

	if !ok {
		return nil
	}

	err := mc.cluster.Destroy(ctx)
	if c.metrics != nil {
		c.metrics.ForgetCluster(name)
	}
	if err != nil {
		return fmt.Errorf("cluster %s did not stop cleanly: %w", name, err)
	}
	logging.Info(clustersSubsystem, "Removed cluster %s", name)
	return nil
}

// Get returns a cluster by name.
func (c *ClusterController) Get(name string) (*cluster.Cluster, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mc, ok := c.clusters[name]
	if !ok {
		return nil, api.NewNotFoundError("cluster", name)
	}
	return mc.cluster, nil
}

// Names returns the cluster names sorted.
func (c *ClusterController) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.clusters))
	for name := range c.clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StopAll removes every cluster concurrently.
func (c *ClusterController) StopAll(ctx context.Context) error {
	names := c.Names()

	errs := make([]error, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			errs[i] = c.RemoveCluster(ctx, name)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
