package operator

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"

	databasesv1 "github.com/wafflehacks/external-postgres/apis/databases/v1"
)

// newScheme returns a scheme carrying the built-in types the reconciler
// needs (Secret) plus the Database CRD type.
func newScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	_ = corev1.AddToScheme(scheme)
	_ = databasesv1.AddToScheme(scheme)
	return scheme
}
