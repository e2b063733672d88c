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

package util

import (
	"context"
	"errors"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
	"k8s.io/klog/v2"
)

// RetriableError represents a transient error that is retriable.
type RetriableError struct {
	err error
}

// NewRetriableError returns a RetriableError
func NewRetriableError(err error) error {
	return &RetriableError{err}
}

// Error implements the Error function of the interface.
func (r *RetriableError) Error() string {
	return r.err.Error()
}

// Unwrap returns the transient error.
func (r *RetriableError) Unwrap() error {
	return r.err
}

// Is makes RetriableErrors comparable.
func (r *RetriableError) Is(target error) bool {
	if target == nil {
		return false
	}
	re, ok := target.(*RetriableError)
	if !ok {
		return false
	}
	return errors.Is(r.err, re.err)
}

var _ error = &RetriableError{}

// IsErrorRetriable returns if the error is retriable.
func IsErrorRetriable(err error) bool {
	var re *RetriableError
	return errors.As(err, &re)
}

// IsTransientAPIError returns true if a call against the Kubernetes API
// failed in a way that is likely to succeed when retried unchanged.
// Conflicts are not transient: the caller must re-observe the object.
func IsTransientAPIError(err error) bool {
	if err == nil {
		return false
	}
	return apierrors.IsServerTimeout(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsTooManyRequests(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsInternalError(err) ||
		apierrors.IsUnexpectedServerError(err) ||
		IsErrorRetriable(err)
}

// BackoffWithDurationLimit returns backoff with a duration limit in 10 steps.
// Here is an example of the duration between steps:
//
//	1.055843837s, 2.085359785s, 4.229560375s, 8.324724174s, 16.295984061s,
//	34.325711987s, 1m5.465642392s, 2m18.625713221s, 4m24.712222056s, 9m18.97652295s.
func BackoffWithDurationLimit(duration time.Duration) wait.Backoff {
	return wait.Backoff{
		Duration: 1 * time.Second,
		Factor:   2,
		Steps:    10,
		Cap:      duration,
		Jitter:   0.1,
	}
}

// FetchBackoff is the backoff for fetching a source: 1s doubling over 5
// attempts, capped at 30s.
func FetchBackoff() wait.Backoff {
	return wait.Backoff{
		Duration: 1 * time.Second,
		Factor:   2,
		Steps:    5,
		Cap:      30 * time.Second,
	}
}

// APIBackoff returns the backoff for transient API errors, with the given
// number of attempts.
func APIBackoff(attempts int) wait.Backoff {
	if attempts < 1 {
		attempts = 1
	}
	return wait.Backoff{
		Duration: 200 * time.Millisecond,
		Factor:   2,
		Steps:    attempts,
		Cap:      5 * time.Second,
		Jitter:   0.1,
	}
}

// RetryWithBackoff retries f while it returns an error accepted by
// retriable, until the backoff is exhausted or ctx is done.
func RetryWithBackoff(ctx context.Context, backoff wait.Backoff, retriable func(error) bool, f func() error) error {
	return retry.OnError(backoff, func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		return retriable(err)
	}, func() error {
		err := f()
		if err != nil {
			klog.V(2).Info(err)
		}
		return err
	})
}
