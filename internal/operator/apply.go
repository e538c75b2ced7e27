package operator

import (
	"encoding/json"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/types"
)

const applyPatchType = types.ApplyPatchType

// mustMarshalApply renders crd as the JSON body a server-side apply patch
// expects, stamping the apiVersion/kind the CRD type itself omits when
// constructed as a Go literal.
func mustMarshalApply(crd *apiextensionsv1.CustomResourceDefinition) []byte {
	crd.APIVersion = apiextensionsv1.SchemeGroupVersion.String()
	crd.Kind = "CustomResourceDefinition"

	data, err := json.Marshal(crd)
	if err != nil {
		panic(err)
	}
	return data
}
