package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/giantswarm/steward/internal/api"
	"github.com/giantswarm/steward/internal/cluster"
	"github.com/giantswarm/steward/internal/config"
)

// FindDefinition loads the definitions below the config path and returns
// the one named name. Broken files are skipped; the loader logs them.
func (a *Application) FindDefinition(name string) (config.ClusterDefinition, error) {
	defs, err := config.LoadClusterDefinitions(a.config.ConfigPath, a.services.Catalog.Types())
	if err != nil {
		var rejected *config.FileErrors
		if !errors.As(err, &rejected) {
			return config.ClusterDefinition{}, err
		}
	}

	for _, def := range defs {
		if def.Name == name {
			return def, nil
		}
	}
	return config.ClusterDefinition{}, api.NewNotFoundError("cluster definition", name)
}

// Scale creates the cluster defined as name and scales it out by n
// members. The result lists every member even when err is a
// *api.ScaleError. The members keep running until Shutdown.
func (a *Application) Scale(ctx context.Context, name string, n int) (*cluster.ScaleResult, error) {
	if n <= 0 {
		return nil, fmt.Errorf("scale-out needs a positive member count, got %d", n)
	}

	def, err := a.FindDefinition(name)
	if err != nil {
		return nil, err
	}

	cl, err := a.services.Clusters.Create(def)
	if err != nil {
		return nil, err
	}
	return cl.Start(ctx, n)
}

// Shutdown stops every cluster the application created.
func (a *Application) Shutdown(ctx context.Context) error {
	return a.services.Clusters.StopAll(ctx)
}
