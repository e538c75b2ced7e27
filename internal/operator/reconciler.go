package operator

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	databasesv1 "github.com/wafflehacks/external-postgres/apis/databases/v1"
	"github.com/wafflehacks/external-postgres/internal/apierrors"
	"github.com/wafflehacks/external-postgres/internal/provisioning"
)

// errorBackoff is the fixed requeue delay on reconcile failure.
const errorBackoff = 5 * time.Second

// DatabaseReconciler drives the ProvisioningEngine from Database custom
// resource events and replicates the resulting credential secret into
// every namespace the resource names.
type DatabaseReconciler struct {
	client.Client
	Engine *provisioning.Engine
	Secret SecretConfig
	Log    logr.Logger
}

// Reconcile implements the apply/cleanup branches from the component
// design: attach a finalizer on first sight, ensure the database while
// the resource lives, tear it down and release the finalizer once it is
// marked for deletion.
func (r *DatabaseReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	log := r.Log.WithValues("database", req.Name)

	var db databasesv1.Database
	if err := r.Get(ctx, req.NamespacedName, &db); err != nil {
		if apierrs.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		log.Error(err, "failed to get database")
		reconcileTotal.WithLabelValues("error").Inc()
		return ctrl.Result{RequeueAfter: errorBackoff}, nil
	}

	if db.Name == "" {
		log.Error(apierrors.ErrNoName, "database has no name")
		reconcileTotal.WithLabelValues("error").Inc()
		return ctrl.Result{RequeueAfter: errorBackoff}, nil
	}

	if !db.DeletionTimestamp.IsZero() {
		return r.reconcileDelete(ctx, &db, log)
	}
	return r.reconcileApply(ctx, &db, log)
}

func (r *DatabaseReconciler) reconcileApply(ctx context.Context, db *databasesv1.Database, log logr.Logger) (ctrl.Result, error) {
	if !controllerutil.ContainsFinalizer(db, databasesv1.FinalizerName) {
		controllerutil.AddFinalizer(db, databasesv1.FinalizerName)
		if err := r.Update(ctx, db); err != nil {
			log.Error(err, "failed to add finalizer")
			reconcileTotal.WithLabelValues("error").Inc()
			return ctrl.Result{RequeueAfter: errorBackoff}, nil
		}
		return ctrl.Result{Requeue: true}, nil
	}

	password, err := r.resolvePassword(ctx, db)
	if err != nil {
		log.Error(err, "failed to resolve password")
		reconcileTotal.WithLabelValues("error").Inc()
		return ctrl.Result{RequeueAfter: errorBackoff}, nil
	}

	if err := r.Engine.Ensure(ctx, db.Name, password); err != nil {
		log.Error(err, "ensure failed")
		reconcileTotal.WithLabelValues("error").Inc()
		return ctrl.Result{RequeueAfter: errorBackoff}, nil
	}

	creds := buildCredentials(db.Name, password, r.Secret)
	secretName := credentialSecretName(db)

	for _, ns := range db.Spec.Secret.Namespaces {
		if err := r.applySecret(ctx, ns, secretName, creds); err != nil {
			log.Error(err, "failed to replicate credential secret", "namespace", ns)
			reconcileTotal.WithLabelValues("error").Inc()
			return ctrl.Result{RequeueAfter: errorBackoff}, nil
		}
	}

	db.Status.Ready = true
	db.Status.ObservedGeneration = db.Generation
	db.Status.Message = ""
	if err := r.Status().Update(ctx, db); err != nil {
		log.Error(err, "failed to update status")
	}

	log.Info("database ensured", "namespaces", db.Spec.Secret.Namespaces)
	reconcileTotal.WithLabelValues("success").Inc()
	return ctrl.Result{}, nil
}

func (r *DatabaseReconciler) reconcileDelete(ctx context.Context, db *databasesv1.Database, log logr.Logger) (ctrl.Result, error) {
	if !controllerutil.ContainsFinalizer(db, databasesv1.FinalizerName) {
		return ctrl.Result{}, nil
	}

	if err := r.Engine.Remove(ctx, db.Name, db.Spec.RetainOnDelete); err != nil {
		log.Error(err, "remove failed")
		reconcileTotal.WithLabelValues("error").Inc()
		return ctrl.Result{RequeueAfter: errorBackoff}, nil
	}

	secretName := credentialSecretName(db)
	for _, ns := range db.Spec.Secret.Namespaces {
		if err := r.deleteSecret(ctx, ns, secretName); err != nil {
			log.Error(err, "failed to delete replicated secret", "namespace", ns)
		}
	}

	patch := client.MergeFrom(db.DeepCopy())
	controllerutil.RemoveFinalizer(db, databasesv1.FinalizerName)
	if err := r.Patch(ctx, db, patch); err != nil {
		log.Error(err, "failed to remove finalizer")
		reconcileTotal.WithLabelValues("error").Inc()
		return ctrl.Result{RequeueAfter: errorBackoff}, nil
	}

	log.Info("database removed", "retain", db.Spec.RetainOnDelete)
	reconcileTotal.WithLabelValues("success").Inc()
	return ctrl.Result{}, nil
}

// resolvePassword returns the literal password, or fetches and decodes a
// referenced Secret key.
func (r *DatabaseReconciler) resolvePassword(ctx context.Context, db *databasesv1.Database) (string, error) {
	if db.Spec.Password.Value != "" {
		return db.Spec.Password.Value, nil
	}

	ref := db.Spec.Password.SecretRef
	if ref == nil {
		return "", apierrors.ErrNoPassword
	}

	var secret corev1.Secret
	key := client.ObjectKey{Namespace: ref.Namespace, Name: ref.Name}
	if err := r.Get(ctx, key, &secret); err != nil {
		return "", apierrors.ErrNoPassword
	}

	raw, ok := secret.Data[ref.Key]
	if !ok {
		return "", apierrors.ErrNoPassword
	}

	if !isUTF8(raw) {
		return "", apierrors.ErrInvalidPassword
	}
	return string(raw), nil
}

// credentialSecretName computes the replicated Secret's name: the
// override in spec.secret.name, or the default "database-<name>-secret"
// pattern.
func credentialSecretName(db *databasesv1.Database) string {
	if db.Spec.Secret.Name != "" {
		return db.Spec.Secret.Name
	}
	return "database-" + db.Name + "-secret"
}
