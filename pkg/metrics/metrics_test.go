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

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

func TestRecordApplyOperation(t *testing.T) {
	gvk := schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "Deployment"}
	before := testutil.ToFloat64(ApplyOperations.WithLabelValues("create", "Deployment", "error"))
	RecordApplyOperation("create", gvk, errors.New("boom"))
	after := testutil.ToFloat64(ApplyOperations.WithLabelValues("create", "Deployment", "error"))
	assert.Equal(t, before+1, after)
}

func TestRecordApplications(t *testing.T) {
	RecordApplications(map[string]int{"Synced": 2, "Error": 1})
	assert.Equal(t, float64(2), testutil.ToFloat64(Applications.WithLabelValues("Synced")))
	RecordApplications(map[string]int{"Synced": 1})
	assert.Equal(t, float64(1), testutil.ToFloat64(Applications.WithLabelValues("Synced")))
	assert.Equal(t, 1, testutil.CollectAndCount(Applications))
}

func TestRecordLastPoll(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	RecordLastPoll(ts)
	assert.Equal(t, float64(1700000000), testutil.ToFloat64(LastPoll))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "success", StatusLabel(nil))
	assert.Equal(t, "error", StatusLabel(errors.New("x")))
}
