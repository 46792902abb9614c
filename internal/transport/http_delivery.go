/*
 * Copyright (c) 2026, Datalyr, Inc. (https://datalyr.com).
 *
 * Datalyr, Inc. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/datalyr/datalyr-go/internal/system/errors"
	"github.com/datalyr/datalyr-go/internal/system/log"
)

const (
	requestTimeout = 15 * time.Second
	tokenLifetime  = 2 * time.Minute
)

// HTTPDelivery posts JSON event batches to the collection endpoint.
// Authentication is either a minted HS256 bearer token (when a signing
// secret is configured) or the plain API-key header.
type HTTPDelivery struct {
	endpoint      string
	workspaceID   string
	apiKey        string
	signingSecret string
	client        *http.Client
	logger        *log.Logger
	now           func() time.Time
}

type batchEnvelope struct {
	WorkspaceID string                   `json:"workspace_id"`
	SentAt      int64                    `json:"sent_at"`
	Events      []map[string]interface{} `json:"events"`
}

func NewHTTPDelivery(endpoint, workspaceID, apiKey, signingSecret string) *HTTPDelivery {
	return &HTTPDelivery{
		endpoint:      endpoint,
		workspaceID:   workspaceID,
		apiKey:        apiKey,
		signingSecret: signingSecret,
		client:        &http.Client{Timeout: requestTimeout},
		logger:        log.GetLogger().With(log.String("component", "delivery")),
		now:           time.Now,
	}
}

// Send posts the batch and classifies the response. Network errors and
// 5xx/429 responses are retryable; any other non-2xx response is fatal.
func (d *HTTPDelivery) Send(events []map[string]interface{}) Outcome {
	body, err := json.Marshal(batchEnvelope{
		WorkspaceID: d.workspaceID,
		SentAt:      d.now().UnixMilli(),
		Events:      events,
	})
	if err != nil {
		d.logger.Error("failed to encode event batch", log.Error(err))
		return OutcomeFatal
	}

	req, err := http.NewRequest(http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		d.logger.Error("failed to build delivery request", log.Error(err))
		return OutcomeFatal
	}
	req.Header.Set("Content-Type", "application/json")
	if err := d.authorize(req); err != nil {
		d.logger.Error("failed to authorize delivery request", log.Error(err))
		return OutcomeRetryable
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Debug("delivery attempt failed",
			log.Error(errors.NewServerError(errors.ErrWhileDeliveringBatch, err)))
		return OutcomeRetryable
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return OutcomeSuccess
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		d.logger.Debug("delivery rejected, will retry",
			log.Int("status", resp.StatusCode),
			log.String("code", errors.ErrWhileDeliveringBatch.Code))
		return OutcomeRetryable
	default:
		d.logger.Warn("delivery rejected",
			log.Int("status", resp.StatusCode),
			log.String("code", errors.ErrWhileDeliveringBatch.Code))
		return OutcomeFatal
	}
}

func (d *HTTPDelivery) authorize(req *http.Request) error {
	if d.signingSecret == "" {
		req.Header.Set("X-Api-Key", d.apiKey)
		return nil
	}

	now := d.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": d.workspaceID,
		"iat": now.Unix(),
		"exp": now.Add(tokenLifetime).Unix(),
	})
	signed, err := token.SignedString([]byte(d.signingSecret))
	if err != nil {
		return errors.NewServerError(errors.ErrWhileMintingToken, err)
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	return nil
}
