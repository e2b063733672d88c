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

// Package reconciler tracks every generated application through its
// lifecycle:
//
//	Absent → Pending → Synced ⇄ OutOfSync → Pruning → Absent
//
// plus Error, from which an application is retried with backoff, and
// Orphaned, for applications which disappeared while pruning is disabled.
//
// Applications are keyed by name on a rate-limited work queue. A name is
// never handed to two workers at once, so at most one apply, drift check or
// delete runs per application. Applications of one ApplicationSet are
// released wave by wave.
package reconciler
