package operator

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextensionsclient "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/rest"

	databasesv1 "github.com/wafflehacks/external-postgres/apis/databases/v1"
)

const crdFieldManager = "external-postgres.wafflehacks.cloud"

// crdName is the Database CRD's cluster-scoped object name.
var crdName = "databases." + databasesv1.Group

// ensureCRDInstalled server-side-applies the Database CustomResourceDefinition
// and waits for its Established condition before returning.
func ensureCRDInstalled(restConfig *rest.Config, log logr.Logger) error {
	clientset, err := apiextensionsclient.NewForConfig(restConfig)
	if err != nil {
		return err
	}

	crd := databaseCRD()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = clientset.ApiextensionsV1().CustomResourceDefinitions().Patch(
		ctx, crdName, applyPatchType, mustMarshalApply(crd), metav1.PatchOptions{
			FieldManager: crdFieldManager,
			Force:        boolPtr(true),
		})
	if err != nil {
		return err
	}

	log.Info("applied Database CRD, waiting for Established condition")
	return wait.PollUntilContextTimeout(ctx, 2*time.Second, 30*time.Second, true,
		func(ctx context.Context) (bool, error) {
			got, err := clientset.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, crdName, metav1.GetOptions{})
			if err != nil {
				if apierrs.IsNotFound(err) {
					return false, nil
				}
				return false, err
			}
			return crdEstablished(got), nil
		})
}

func crdEstablished(crd *apiextensionsv1.CustomResourceDefinition) bool {
	for _, cond := range crd.Status.Conditions {
		if cond.Type == apiextensionsv1.Established && cond.Status == apiextensionsv1.ConditionTrue {
			return true
		}
	}
	return false
}

// databaseCRD is the canonical definition of the Database custom resource:
// group external-postgres.wafflehacks.cloud, version v1, kind Database,
// cluster-scoped, shortnames db/dbs.
func databaseCRD() *apiextensionsv1.CustomResourceDefinition {
	preserveUnknown := true
	return &apiextensionsv1.CustomResourceDefinition{
		ObjectMeta: metav1.ObjectMeta{Name: crdName},
		Spec: apiextensionsv1.CustomResourceDefinitionSpec{
			Group: databasesv1.Group,
			Names: apiextensionsv1.CustomResourceDefinitionNames{
				Plural:     "databases",
				Singular:   "database",
				Kind:       databasesv1.DatabaseKind,
				ShortNames: []string{"db", "dbs"},
			},
			Scope: apiextensionsv1.ClusterScoped,
			Versions: []apiextensionsv1.CustomResourceDefinitionVersion{
				{
					Name:    databasesv1.Version,
					Served:  true,
					Storage: true,
					Subresources: &apiextensionsv1.CustomResourceSubresources{
						Status: &apiextensionsv1.CustomResourceSubresourceStatus{},
					},
					Schema: &apiextensionsv1.CustomResourceValidation{
						OpenAPIV3Schema: &apiextensionsv1.JSONSchemaProps{
							Type:                   "object",
							XPreserveUnknownFields: &preserveUnknown,
						},
					},
					AdditionalPrinterColumns: []apiextensionsv1.CustomResourceColumnDefinition{
						{Name: "Ready", Type: "boolean", JSONPath: ".status.ready"},
						{Name: "Age", Type: "date", JSONPath: ".metadata.creationTimestamp"},
					},
				},
			},
		},
	}
}

func boolPtr(b bool) *bool { return &b }
