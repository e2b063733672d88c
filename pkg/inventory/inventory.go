// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package inventory records which objects an application has applied, so
// that objects which are no longer declared can be pruned.
package inventory

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/util/retry"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/api/appsync"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/metadata"
	"sigs.k8s.io/cli-utils/pkg/object"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// NamePrefix is prepended to the application name to name its inventory.
const NamePrefix = "appsync-inventory-"

// Store persists the IDs of the objects applied for each application.
type Store interface {
	// Load returns the IDs recorded for application. An application without
	// an inventory has an empty set.
	Load(ctx context.Context, application string) (core.IDSet, error)
	// Save replaces the IDs recorded for application.
	Save(ctx context.Context, application, rule string, ids core.IDSet) error
	// Delete removes the inventory of application. Deleting a missing
	// inventory succeeds.
	Delete(ctx context.Context, application string) error
}

// ConfigMapStore keeps one ConfigMap per application. Like the cli-utils
// ConfigMap inventory, each data key is an encoded object.ObjMetadata.
type ConfigMapStore struct {
	Client    client.Client
	Namespace string

	mux             sync.Mutex
	namespaceExists bool
}

var _ Store = &ConfigMapStore{}

// NewConfigMapStore returns a store which keeps inventories in namespace.
func NewConfigMapStore(c client.Client, namespace string) *ConfigMapStore {
	if namespace == "" {
		namespace = appsync.ControllerNamespace
	}
	return &ConfigMapStore{Client: c, Namespace: namespace}
}

// Name returns the name of the inventory ConfigMap of application.
func Name(application string) string {
	return NamePrefix + application
}

func (s *ConfigMapStore) key(application string) client.ObjectKey {
	return client.ObjectKey{Namespace: s.Namespace, Name: Name(application)}
}

// Load implements Store.
func (s *ConfigMapStore) Load(ctx context.Context, application string) (core.IDSet, error) {
	cm := &corev1.ConfigMap{}
	if err := s.Client.Get(ctx, s.key(application), cm); err != nil {
		if apierrors.IsNotFound(err) {
			return core.NewIDSet(), nil
		}
		return nil, errors.Wrapf(err, "reading inventory of application %q", application)
	}
	return decode(cm)
}

// Save implements Store.
func (s *ConfigMapStore) Save(ctx context.Context, application, rule string, ids core.IDSet) error {
	if err := s.ensureNamespace(ctx); err != nil {
		return err
	}
	data := encode(ids)
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		cm := &corev1.ConfigMap{}
		err := s.Client.Get(ctx, s.key(application), cm)
		switch {
		case apierrors.IsNotFound(err):
			cm = &corev1.ConfigMap{
				ObjectMeta: metav1.ObjectMeta{
					Namespace: s.Namespace,
					Name:      Name(application),
				},
				Data: data,
			}
			core.AddLabels(cm, metadata.OwnerLabels(application, rule))
			core.SetLabel(cm, metadata.InventoryLabel, "true")
			return s.Client.Create(ctx, cm)
		case err != nil:
			return err
		}
		cm.Data = data
		return s.Client.Update(ctx, cm)
	})
	if err != nil {
		return errors.Wrapf(err, "writing inventory of application %q", application)
	}
	klog.V(3).Infof("Inventory of application %q holds %d objects", application, len(ids))
	return nil
}

// Delete implements Store.
func (s *ConfigMapStore) Delete(ctx context.Context, application string) error {
	cm := &corev1.ConfigMap{}
	cm.Namespace = s.Namespace
	cm.Name = Name(application)
	if err := s.Client.Delete(ctx, cm); err != nil && !apierrors.IsNotFound(err) {
		return errors.Wrapf(err, "deleting inventory of application %q", application)
	}
	return nil
}

func (s *ConfigMapStore) ensureNamespace(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.namespaceExists {
		return nil
	}
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: s.Namespace}}
	if err := s.Client.Create(ctx, ns); err != nil && !apierrors.IsAlreadyExists(err) {
		return errors.Wrapf(err, "creating inventory namespace %q", s.Namespace)
	}
	s.namespaceExists = true
	return nil
}

func encode(ids core.IDSet) map[string]string {
	data := make(map[string]string, len(ids))
	for id := range ids {
		data[id.ObjMetadata().String()] = ""
	}
	return data
}

func decode(cm *corev1.ConfigMap) (core.IDSet, error) {
	ids := core.NewIDSet()
	for key := range cm.Data {
		m, err := object.ParseObjMetadata(key)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid entry %q in inventory %s/%s", key, cm.Namespace, cm.Name)
		}
		ids[core.FromObjMetadata(m)] = struct{}{}
	}
	return ids, nil
}
