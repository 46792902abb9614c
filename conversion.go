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

package datalyr

import (
	"github.com/datalyr/datalyr-go/internal/bridge"
	"github.com/datalyr/datalyr-go/internal/conversion"
	"github.com/datalyr/datalyr-go/internal/system/errors"
	"github.com/datalyr/datalyr-go/internal/system/log"
)

// conversionChannel is the side channel that encodes every tracked event
// into a conversion value and fires it at the ad-network bridge. It never
// blocks event tracking on postback success.
type conversionChannel struct {
	encoder *conversion.Encoder
	updater bridge.ConversionUpdater
	logger  *log.Logger
}

func newConversionChannel(templateName string, updater bridge.ConversionUpdater) *conversionChannel {
	var template *conversion.Template
	if templateName != "" {
		template = conversion.TemplateByName(templateName)
		if template == nil {
			log.GetLogger().Warn("unknown conversion template, encoding disabled",
				log.String("template", templateName))
		}
	}
	return &conversionChannel{
		encoder: conversion.NewEncoder(template),
		updater: updater,
		logger:  log.GetLogger().With(log.String("component", "conversion-channel")),
	}
}

// post encodes the event and reports the value to the ad network. Results
// are observed only in logs; failures never propagate.
func (c *conversionChannel) post(event string, properties map[string]interface{}) {
	value := c.encoder.EncodeWithSKAN4(event, properties)
	if !value.Matched {
		return
	}
	if c.updater == nil || !c.updater.IsAvailable() {
		return
	}

	var result bridge.Result
	if c.updater.Capability() == bridge.CapabilityIOS {
		result = c.updater.UpdatePostbackConversionValue(value.Fine, value.Coarse, value.LockWindow)
	} else {
		result = c.updater.UpdateConversionValue(value.Fine)
	}
	switch result.Status {
	case bridge.StatusFailed:
		c.logger.Debug("conversion postback failed", log.Error(result.Err))
	case bridge.StatusUnavailable:
		c.logger.Debug("conversion postback unavailable",
			log.Error(errors.NewServerError(errors.ErrBridgeUnavailable, nil)))
	}
}
