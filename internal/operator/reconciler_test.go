package operator

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	databasesv1 "github.com/wafflehacks/external-postgres/apis/databases/v1"
)

func TestResolvePassword_Literal(t *testing.T) {
	r := &DatabaseReconciler{Client: fake.NewClientBuilder().WithScheme(newScheme()).Build()}
	db := &databasesv1.Database{Spec: databasesv1.DatabaseSpec{Password: databasesv1.DatabasePassword{Value: "s3cret"}}}

	pw, err := r.resolvePassword(context.Background(), db)
	if err != nil {
		t.Fatalf("resolvePassword: %v", err)
	}
	if pw != "s3cret" {
		t.Fatalf("got %q, want s3cret", pw)
	}
}

func TestResolvePassword_SecretRefMissingKey(t *testing.T) {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "creds", Namespace: "team-a"},
		Data:       map[string][]byte{"other": []byte("x")},
	}
	r := &DatabaseReconciler{Client: fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(secret).Build()}
	db := &databasesv1.Database{Spec: databasesv1.DatabaseSpec{Password: databasesv1.DatabasePassword{
		SecretRef: &databasesv1.SecretKeySelector{Name: "creds", Namespace: "team-a", Key: "password"},
	}}}

	if _, err := r.resolvePassword(context.Background(), db); err == nil {
		t.Fatal("expected ErrNoPassword for missing key")
	}
}

func TestResolvePassword_SecretRefInvalidUTF8(t *testing.T) {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "creds", Namespace: "team-a"},
		Data:       map[string][]byte{"password": {0xff, 0xfe, 0xfd}},
	}
	r := &DatabaseReconciler{Client: fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(secret).Build()}
	db := &databasesv1.Database{Spec: databasesv1.DatabaseSpec{Password: databasesv1.DatabasePassword{
		SecretRef: &databasesv1.SecretKeySelector{Name: "creds", Namespace: "team-a", Key: "password"},
	}}}

	if _, err := r.resolvePassword(context.Background(), db); err == nil {
		t.Fatal("expected ErrInvalidPassword for non-UTF8 secret value")
	}
}

func TestCredentialSecretName_DefaultsToPattern(t *testing.T) {
	db := &databasesv1.Database{ObjectMeta: metav1.ObjectMeta{Name: "alpha"}}
	if got, want := credentialSecretName(db), "database-alpha-secret"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCredentialSecretName_HonorsOverride(t *testing.T) {
	db := &databasesv1.Database{
		ObjectMeta: metav1.ObjectMeta{Name: "alpha"},
		Spec:       databasesv1.DatabaseSpec{Secret: databasesv1.DatabaseSecretSpec{Name: "custom-name"}},
	}
	if got, want := credentialSecretName(db), "custom-name"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReconcile_AddsFinalizerOnFirstSight(t *testing.T) {
	db := &databasesv1.Database{
		ObjectMeta: metav1.ObjectMeta{Name: "alpha"},
		Spec:       databasesv1.DatabaseSpec{Password: databasesv1.DatabasePassword{Value: "pw"}},
	}
	cl := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(db).Build()
	r := &DatabaseReconciler{Client: cl}

	res, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Name: "alpha"}})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !res.Requeue {
		t.Fatal("expected a requeue after adding the finalizer")
	}

	var got databasesv1.Database
	if err := cl.Get(context.Background(), client.ObjectKey{Name: "alpha"}, &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	found := false
	for _, f := range got.Finalizers {
		if f == databasesv1.FinalizerName {
			found = true
		}
	}
	if !found {
		t.Fatal("expected finalizer to be attached")
	}
}
