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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"kpt.dev/appsync/pkg/service"
)

// UnknownMsg indicates that a field's value is unknown or unavailable.
const UnknownMsg = "UNKNOWN"

// NewWriter returns a standardized writer for the CLI for writing tabular output to the console.
func NewWriter(out io.Writer) *tabwriter.Writer {
	padding := 3
	return tabwriter.NewWriter(out, 0, 0, padding, ' ', 0)
}

// Client calls the operator endpoint of a running controller.
type Client struct {
	server string
	token  string
	http   *http.Client
}

// NewClient returns a Client for the controller at server.
func NewClient(server, token string, timeout time.Duration) *Client {
	return &Client{
		server: strings.TrimSuffix(server, "/"),
		token:  token,
		http:   &http.Client{Timeout: timeout},
	}
}

// Get decodes the JSON response to a GET of path into v.
func (c *Client) Get(ctx context.Context, path string, v interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp, http.StatusOK); err != nil {
		return err
	}
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(v), "decoding the response of %s", path)
}

// Post sends an empty POST to path.
func (c *Client) Post(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodPost, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkResponse(resp, http.StatusOK, http.StatusAccepted)
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.server+path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", path)
	}
	if c.token != "" {
		req.Header.Set(service.TokenHeader, c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s", c.server)
	}
	return resp, nil
}

func checkResponse(resp *http.Response, codes ...int) error {
	for _, code := range codes {
		if resp.StatusCode == code {
			return nil
		}
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("%s %s: %s", resp.Request.Method, resp.Request.URL.Path, resp.Status)
	}
	return fmt.Errorf("%s %s: %s: %s", resp.Request.Method, resp.Request.URL.Path, resp.Status, body.Error)
}
