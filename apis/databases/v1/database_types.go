// Package v1 contains the external-postgres Database custom resource.
package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// SecretKeySelector references a key within a Secret in a given namespace.
type SecretKeySelector struct {
	// Name of the Secret.
	Name string `json:"name"`

	// Key within the Secret holding the password bytes.
	Key string `json:"key"`

	// Namespace the Secret lives in.
	Namespace string `json:"namespace"`
}

// DatabasePassword is either a literal value or a reference to a Secret key.
// Exactly one of Value or SecretRef should be set; a non-empty Value takes
// precedence if both are present.
type DatabasePassword struct {
	// Value is a literal password. Must be non-empty when set.
	// +optional
	Value string `json:"value,omitempty"`

	// SecretRef points at a Secret key holding the password.
	// +optional
	SecretRef *SecretKeySelector `json:"secretRef,omitempty"`
}

// DatabaseSecretSpec configures the replicated credential Secret.
type DatabaseSecretSpec struct {
	// Name overrides the replicated Secret's name. Defaults to
	// database-<dbname>-secret.
	// +optional
	Name string `json:"name,omitempty"`

	// Namespaces the credential Secret must be replicated into.
	// +optional
	Namespaces []string `json:"namespaces,omitempty"`
}

// DatabaseSpec is the desired state of a Database.
type DatabaseSpec struct {
	// Password for the database's owning role.
	Password DatabasePassword `json:"password"`

	// RetainOnDelete reassigns the database to the administrative owner
	// instead of dropping it when the resource is deleted.
	// +optional
	RetainOnDelete bool `json:"retainOnDelete,omitempty"`

	// Secret configures replication of the credential Secret.
	// +optional
	Secret DatabaseSecretSpec `json:"secret,omitempty"`
}

// DatabaseStatus is the observed state of a Database.
type DatabaseStatus struct {
	// Ready is true once the database and its auth plumbing have been
	// provisioned successfully.
	Ready bool `json:"ready,omitempty"`

	// Message is cleared on every successful reconcile. Reconcile errors
	// are logged by the controller and are not written to this field.
	// +optional
	Message string `json:"message,omitempty"`

	// ObservedGeneration is the generation most recently reconciled.
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="READY",type="boolean",JSONPath=".status.ready"
// +kubebuilder:printcolumn:name="AGE",type="date",JSONPath=".metadata.creationTimestamp"
// +kubebuilder:resource:scope=Cluster,shortName={db,dbs}

// Database is the declarative record of a logical database managed on the
// external PostgreSQL-compatible server. The resource's name doubles as
// both the database name and its owning role name.
type Database struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   DatabaseSpec   `json:"spec"`
	Status DatabaseStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// DatabaseList contains a list of Database.
type DatabaseList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Database `json:"items"`
}

// FinalizerName is attached to every managed Database from first reconcile
// until the cleanup branch succeeds.
const FinalizerName = "external-postgres.wafflehacks.cloud/cleanup"
