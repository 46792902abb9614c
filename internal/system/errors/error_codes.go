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

package errors

const errorPrefix = "DLR-"

var (
	// Server error codes

	ErrWhileReadingStorage = ErrorMessage{
		Code:        errorPrefix + "15001",
		Message:     "Error while reading persisted state.",
		Description: "Storage read failed; continuing with in-memory state for this call.",
	}

	ErrWhileWritingStorage = ErrorMessage{
		Code:        errorPrefix + "15002",
		Message:     "Error while persisting state.",
		Description: "Storage write failed; in-memory state is ahead of the persisted copy.",
	}

	ErrWhileDeliveringBatch = ErrorMessage{
		Code:        errorPrefix + "15003",
		Message:     "Error while delivering event batch.",
		Description: "Delivery attempt failed; the batch stays queued for retry.",
	}

	ErrEventDeadLettered = ErrorMessage{
		Code:        errorPrefix + "15004",
		Message:     "Event dropped after exhausting retries.",
		Description: "The event exceeded the retry cap and was removed from the queue.",
	}

	ErrWhileResolvingAttribution = ErrorMessage{
		Code:        errorPrefix + "15005",
		Message:     "Error while resolving attribution.",
		Description: "An attribution source failed; resolution continues without it.",
	}

	ErrWhileMergingWebAttribution = ErrorMessage{
		Code:        errorPrefix + "15006",
		Message:     "Error while merging web attribution.",
		Description: "The web attribution fetch failed; the mobile record is unchanged.",
	}

	ErrWhileMintingToken = ErrorMessage{
		Code:    errorPrefix + "15007",
		Message: "Error while signing the delivery token.",
	}

	ErrBridgeUnavailable = ErrorMessage{
		Code:        errorPrefix + "15008",
		Message:     "Platform bridge unavailable.",
		Description: "The native collaborator is absent on this platform.",
	}

	// Client error codes

	ErrInvalidEvent = ErrorMessage{
		Code:    errorPrefix + "11001",
		Message: "Invalid event.",
	}

	ErrInvalidConfig = ErrorMessage{
		Code:    errorPrefix + "11002",
		Message: "Invalid SDK configuration.",
	}

	ErrNoTemplateConfigured = ErrorMessage{
		Code:        errorPrefix + "11003",
		Message:     "No conversion template configured.",
		Description: "Conversion encoding is a no-op until a template is selected at initialization.",
	}

	ErrInvalidDeepLink = ErrorMessage{
		Code:    errorPrefix + "11004",
		Message: "Deep link could not be parsed.",
	}
)
