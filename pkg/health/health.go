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

// Package health computes the health of applied objects.
package health

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/status"
	kstatus "sigs.k8s.io/cli-utils/pkg/kstatus/status"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	// ArgoRolloutAPIVersion is the API version for Argo Rollouts
	ArgoRolloutAPIVersion = "argoproj.io/v1alpha1"
	// ArgoRolloutKind is the kind for Argo Rollouts
	ArgoRolloutKind = "Rollout"
)

// fixArgoRolloutObservedGeneration converts the string
// status.observedGeneration Argo Rollouts report to the int64 kstatus
// expects. https://github.com/argoproj/argo-rollouts/issues/3402
func fixArgoRolloutObservedGeneration(obj *unstructured.Unstructured) {
	if obj.GetAPIVersion() != ArgoRolloutAPIVersion || obj.GetKind() != ArgoRolloutKind {
		return
	}
	observedGen, found, err := unstructured.NestedString(obj.Object, "status", "observedGeneration")
	if !found || err != nil {
		return
	}
	if intVal, err := strconv.ParseInt(observedGen, 10, 64); err == nil {
		if err := unstructured.SetNestedField(obj.Object, intVal, "status", "observedGeneration"); err != nil {
			klog.V(4).Infof("Failed to fix observedGeneration for Rollout %s/%s: %v", obj.GetNamespace(), obj.GetName(), err)
		}
	}
}

// Of returns the health of obj as computed by kstatus, with the message
// kstatus gives for it.
func Of(obj *unstructured.Unstructured) (status.HealthStatus, string) {
	obj = obj.DeepCopy()
	fixArgoRolloutObservedGeneration(obj)

	result, err := kstatus.Compute(obj)
	if err != nil || result == nil {
		klog.V(2).Infof("kstatus.Compute for %s/%s failed: %v", obj.GetNamespace(), obj.GetName(), err)
		return status.HealthUnknown, ""
	}
	switch result.Status {
	case kstatus.CurrentStatus:
		return status.HealthHealthy, result.Message
	case kstatus.InProgressStatus, kstatus.TerminatingStatus:
		return status.HealthProgressing, result.Message
	case kstatus.FailedStatus:
		return status.HealthDegraded, result.Message
	default:
		return status.HealthUnknown, result.Message
	}
}

// severity orders health from best to worst.
var severity = map[status.HealthStatus]int{
	status.HealthHealthy:     0,
	status.HealthProgressing: 1,
	status.HealthUnknown:     2,
	status.HealthDegraded:    3,
}

// Worst returns the worst of healths. No healths at all is Healthy.
func Worst(healths ...status.HealthStatus) status.HealthStatus {
	worst := status.HealthHealthy
	for _, h := range healths {
		if severity[h] > severity[worst] {
			worst = h
		}
	}
	return worst
}

// podSpecPaths locates the pod spec of the workload kinds.
var podSpecPaths = map[string][]string{
	"Pod":         {"spec"},
	"Deployment":  {"spec", "template", "spec"},
	"StatefulSet": {"spec", "template", "spec"},
	"DaemonSet":   {"spec", "template", "spec"},
	"ReplicaSet":  {"spec", "template", "spec"},
	"Job":         {"spec", "template", "spec"},
	"CronJob":     {"spec", "jobTemplate", "spec", "template", "spec"},
}

// PullSecrets returns the names of the image pull secrets the pods of obj
// reference, sorted.
func PullSecrets(obj *unstructured.Unstructured) []string {
	path, found := podSpecPaths[obj.GetKind()]
	if !found {
		return nil
	}
	refs, found, err := unstructured.NestedSlice(obj.Object, append(path, "imagePullSecrets")...)
	if !found || err != nil {
		return nil
	}
	var names []string
	for _, ref := range refs {
		m, ok := ref.(map[string]interface{})
		if !ok {
			continue
		}
		if name, ok := m["name"].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Checker computes the health of live objects.
type Checker struct {
	Client client.Reader
}

// Check returns the health of obj. A workload referencing an image pull
// secret which does not exist in its namespace is Progressing: its pods
// cannot start until someone creates the secret.
func (c *Checker) Check(ctx context.Context, obj *unstructured.Unstructured) (status.HealthStatus, string, error) {
	health, message := Of(obj)
	missing, err := c.MissingPullSecrets(ctx, obj)
	if err != nil {
		return status.HealthUnknown, "", err
	}
	if len(missing) > 0 && health != status.HealthDegraded {
		return status.HealthProgressing, fmt.Sprintf("waiting for image pull secrets %s in namespace %q",
			strings.Join(missing, ", "), obj.GetNamespace()), nil
	}
	return health, message, nil
}

// MissingPullSecrets returns the image pull secrets obj references which do
// not exist.
func (c *Checker) MissingPullSecrets(ctx context.Context, obj *unstructured.Unstructured) ([]string, error) {
	var missing []string
	for _, name := range PullSecrets(obj) {
		secret := &corev1.Secret{}
		err := c.Client.Get(ctx, client.ObjectKey{Namespace: obj.GetNamespace(), Name: name}, secret)
		switch {
		case apierrors.IsNotFound(err):
			missing = append(missing, name)
		case err != nil:
			return nil, err
		}
	}
	return missing, nil
}
