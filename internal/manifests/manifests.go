// Package manifests builds the Kubernetes objects the suites submit to the
// backup repository and the backup maker controller.
package manifests

import (
	"bytes"
	"encoding/base64"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/yaml"

	"github.com/riotkit-org/backup-e2e/internal/models"
)

const (
	RepositoryAPIVersion = "backups.riotkit.org/v1alpha1"
	ControllerAPIVersion = "riotkit.org/v1alpha1"

	CollectionSecretName = "backup-repository-collection-secrets"
	CollectionHealthKey  = "iwa-ait"
	// sha256 of "admin", kept in the form the repository stores it
	CollectionHealthCode = "8c6976e5b5410415bde908bd4dee15dfb167a9c873fc4bb8a81f6f2ab448a918"

	BackupKeysSecretName = "backup-keys"
	DefaultKindType      = "Job"
	TemplateKind         = "ClusterBackupProcedureTemplate"
)

// User is a backup repository account.
type User struct {
	Name  string
	Email string
	// EncodedPassword is the output of "br --encode-password", already in
	// Secret data (base64) form.
	EncodedPassword string
	Organization    string
	About           string
	Roles           []string
}

// Collection is a backup repository collection definition.
type Collection struct {
	Name              string
	Description       string
	FilenameTemplate  string
	MaxBackupsCount   int
	MaxOneVersionSize string
	MaxCollectionSize string
	StrategyName      string
}

// Schedule is a ScheduledBackup of the backup maker controller.
type Schedule struct {
	Name           string
	Operation      string
	Email          string
	CronJobEnabled bool
	ScheduleEvery  string
	CollectionID   string
	TemplateName   string
	// TemplateVars is passed verbatim to the procedure template.
	TemplateVars string
}

func BackupUser(u User, ns string) *unstructured.Unstructured {
	organization := u.Organization
	if organization == "" {
		organization = "Riotkit"
	}
	roles := u.Roles
	if len(roles) == 0 {
		roles = []string{"systemAdmin"}
	}

	return object(RepositoryAPIVersion, "BackupUser", u.Name, ns, map[string]interface{}{
		"email":        u.Email,
		"deactivated":  false,
		"organization": organization,
		"about":        u.About,
		"passwordFromRef": map[string]interface{}{
			"name":  UserSecretName(u.Name),
			"entry": "password",
		},
		"roles": stringSlice(roles),
	})
}

func UserSecretName(user string) string {
	return user + "-secret"
}

// UserSecret holds the encoded password referenced by BackupUser.
func UserSecret(u User, ns string) (*corev1.Secret, error) {
	password, err := base64.StdEncoding.DecodeString(u.EncodedPassword)
	if err != nil {
		return nil, fmt.Errorf("encoded password of user %s is not base64: %w", u.Name, err)
	}
	return secret(UserSecretName(u.Name), ns, map[string][]byte{"password": password}, nil), nil
}

func BackupCollection(c Collection, ns string) *unstructured.Unstructured {
	return object(RepositoryAPIVersion, "BackupCollection", c.Name, ns, map[string]interface{}{
		"description":       c.Description,
		"filenameTemplate":  c.FilenameTemplate,
		"maxBackupsCount":   int64(c.MaxBackupsCount),
		"maxOneVersionSize": c.MaxOneVersionSize,
		"maxCollectionSize": c.MaxCollectionSize,
		"strategyName":      c.StrategyName,
		"strategySpec":      map[string]interface{}{},
		"healthSecretRef": map[string]interface{}{
			"name":  CollectionSecretName,
			"entry": CollectionHealthKey,
		},
		"accessControl": []interface{}{
			map[string]interface{}{
				"userName": "admin",
				"roles":    stringSlice([]string{"collectionManager"}),
			},
		},
	})
}

// CollectionHealthSecret holds the code guarding the collection health endpoint.
func CollectionHealthSecret(ns string) (*corev1.Secret, error) {
	code, err := base64.StdEncoding.DecodeString(CollectionHealthCode)
	if err != nil {
		return nil, err
	}
	s := secret(CollectionSecretName, ns, map[string][]byte{CollectionHealthKey: code}, nil)
	s.Type = corev1.SecretTypeOpaque
	return s, nil
}

// BackupKeysSecret carries the repository access token. GPG keys are added
// to it by the controller.
func BackupKeysSecret(token, ns string) *corev1.Secret {
	return secret(BackupKeysSecretName, ns, nil, map[string]string{
		"passphrase": "",
		"token":      token,
	})
}

func ScheduledBackup(s Schedule, ns string) *unstructured.Unstructured {
	return object(ControllerAPIVersion, "ScheduledBackup", s.Name, ns, map[string]interface{}{
		"operation": s.Operation,
		"cronJob": map[string]interface{}{
			"enabled":       s.CronJobEnabled,
			"scheduleEvery": s.ScheduleEvery,
		},
		"collectionId": s.CollectionID,
		"gpgKeySecretRef": map[string]interface{}{
			"createIfNotExists": true,
			"email":             s.Email,
			"passphraseKey":     "passphrase",
			"privateKey":        "private",
			"publicKey":         "public",
			"secretName":        BackupKeysSecretName,
		},
		"tokenSecretRef": map[string]interface{}{
			"secretName": BackupKeysSecretName,
			"tokenKey":   "token",
		},
		"templateRef": map[string]interface{}{
			"kind": TemplateKind,
			"name": s.TemplateName,
		},
		"vars":          s.TemplateVars,
		"varsSecretRef": map[string]interface{}{},
	})
}

// RequestedBackupAction asks the controller to run action once for the
// referenced ScheduledBackup.
func RequestedBackupAction(name string, action models.ActionKind, scheduledBackup, kindType, ns string) *unstructured.Unstructured {
	if kindType == "" {
		kindType = DefaultKindType
	}
	return object(ControllerAPIVersion, "RequestedBackupAction", name, ns, map[string]interface{}{
		"kindType": kindType,
		"action":   string(action),
		"scheduledBackupRef": map[string]interface{}{
			"name": scheduledBackup,
		},
	})
}

// Render marshals objects into a multi-document YAML stream.
func Render(objs ...runtime.Object) ([]byte, error) {
	var buf bytes.Buffer
	for _, obj := range objs {
		doc, err := yaml.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", obj.GetObjectKind().GroupVersionKind().Kind, err)
		}
		buf.WriteString("---\n")
		buf.Write(doc)
	}
	return buf.Bytes(), nil
}

func object(apiVersion, kind, name, ns string, spec map[string]interface{}) *unstructured.Unstructured {
	u := &unstructured.Unstructured{Object: map[string]interface{}{"spec": spec}}
	u.SetAPIVersion(apiVersion)
	u.SetKind(kind)
	u.SetName(name)
	if ns != "" {
		u.SetNamespace(ns)
	}
	return u
}

func secret(name, ns string, data map[string][]byte, stringData map[string]string) *corev1.Secret {
	return &corev1.Secret{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: ns,
		},
		Data:       data,
		StringData: stringData,
	}
}

func stringSlice(in []string) []interface{} {
	out := make([]interface{}, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}
