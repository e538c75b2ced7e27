package operator

import (
	"github.com/go-logr/logr"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"

	databasesv1 "github.com/wafflehacks/external-postgres/apis/databases/v1"
	"github.com/wafflehacks/external-postgres/internal/provisioning"
)

// buildManager wires a controller-runtime manager watching Database
// cluster-wide, bootstraps its CRD, and registers the reconciler.
func buildManager(restConfig *rest.Config, cfg Config, engine *provisioning.Engine, logger logr.Logger) (ctrl.Manager, error) {
	log.SetLogger(logger)

	scheme := newScheme()

	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{
		Scheme: scheme,
	})
	if err != nil {
		return nil, err
	}

	if err := ensureCRDInstalled(restConfig, logger); err != nil {
		// CRD apply failures are logged, never fatal: the loop still
		// runs, it simply no-ops until the CRD exists.
		logger.Error(err, "failed to apply Database CRD; reconciler will idle until it exists")
	}

	r := &DatabaseReconciler{
		Client: mgr.GetClient(),
		Engine: engine,
		Secret: cfg.Secret,
		Log:    logger.WithName("database-reconciler"),
	}

	if err := ctrl.NewControllerManagedBy(mgr).
		For(&databasesv1.Database{}).
		Complete(r); err != nil {
		return nil, err
	}

	return mgr, nil
}
