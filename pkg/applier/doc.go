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

/*
Package applier is the only writer of the target. It keeps the live objects
of one application matching the manifests its descriptor points at.

Apply
- The project gate checks the destination before anything is fetched, and
every object kind before anything is written.
- Objects are decorated with the owner label of the application, defaulted
into the destination namespace, and sorted so Namespaces come first.
- The inventory is extended with every declared object before any of them
is created, so an interrupted apply never leaves untracked objects behind.
- Every object is read, compared with its declaration, and created or
updated. Updates carry the resourceVersion read just before, so a
concurrent change fails the update instead of being overwritten.
- Objects in the inventory which are no longer declared are pruned if the
application allows it, they are still owned by the application, and they
do not opt out with the Prune=false sync option.

A cancelled apply stops between two objects, never in the middle of a call.
*/
package applier
