package operator

import (
	"context"
	"fmt"
	"net/url"
	"unicode/utf8"

	corev1 "k8s.io/api/core/v1"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const secretFieldManager = "external-postgres.wafflehacks.cloud"

// buildCredentials builds the documented credential-secret key set for a
// managed database, including a percent-encoded DATABASE_URL so that a
// password containing reserved URI characters does not produce an
// ambiguous connection string.
func buildCredentials(name, password string, conn SecretConfig) map[string]string {
	databaseURL := fmt.Sprintf("postgresql://%s@%s:%s/%s?sslmode=%s",
		url.UserPassword(name, password).String(), conn.Host, conn.Port, name, conn.SSLMode)

	return map[string]string{
		"PGHOST":       conn.Host,
		"PGPORT":       conn.Port,
		"PGSSLMODE":    conn.SSLMode,
		"PGUSER":       name,
		"PGPASSWORD":   password,
		"PGDATABASE":   name,
		"DATABASE_URL": databaseURL,
	}
}

// applySecret server-side-applies a Secret named name in namespace ns
// carrying data as string data, owned by this controller's field manager.
func (r *DatabaseReconciler) applySecret(ctx context.Context, ns, name string, data map[string]string) error {
	secret := &corev1.Secret{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Secret",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: ns,
		},
		StringData: data,
		Type:       corev1.SecretTypeOpaque,
	}

	return r.Patch(ctx, secret, client.Apply,
		client.FieldOwner(secretFieldManager), client.ForceOwnership)
}

// deleteSecret removes the replicated Secret, tolerating its absence.
func (r *DatabaseReconciler) deleteSecret(ctx context.Context, ns, name string) error {
	secret := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: ns}}
	if err := r.Delete(ctx, secret); err != nil && !apierrs.IsNotFound(err) {
		return err
	}
	return nil
}

func isUTF8(b []byte) bool {
	return utf8.Valid(b)
}
