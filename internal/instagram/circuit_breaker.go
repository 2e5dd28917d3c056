// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package instagram

import (
	"context"
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/leadflowhq/leadflow/internal/logging"
	"github.com/leadflowhq/leadflow/internal/metrics"
)

// API is the Graph API surface consumed by the automation engine. Both the
// raw Client and the CircuitBreakerClient implement it.
type API interface {
	SendDM(ctx context.Context, pageID, accessToken, recipientID, text string) (string, error)
	SendDMWithButton(ctx context.Context, pageID, accessToken, recipientID, text, buttonTitle, payload string) (string, error)
	SendPrivateReply(ctx context.Context, accessToken, commentID, text string) (string, error)
	ReplyToComment(ctx context.Context, accessToken, commentID, text string) error
	GetMedia(ctx context.Context, igUserID, accessToken string) ([]Media, error)
	GetStories(ctx context.Context, igUserID, accessToken string) ([]Media, error)
	GetLiveMedia(ctx context.Context, igUserID, accessToken string) ([]Media, error)
}

var _ API = (*Client)(nil)
var _ API = (*CircuitBreakerClient)(nil)

// CircuitBreakerClient wraps Client with a circuit breaker so a degraded
// Graph API cannot pile up blocked webhook workers. The breaker opens at a
// 60% failure rate over a minimum of 10 requests and probes again after
// two minutes.
type CircuitBreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewCircuitBreakerClient wraps client with circuit breaker protection.
func NewCircuitBreakerClient(client *Client) *CircuitBreakerClient {
	cbName := "graph-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: cbName}
}

// execute wraps one Graph API call with circuit breaker protection.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		}
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	return result, nil
}

// castResult type-casts a circuit breaker result with error checking.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("instagram: unexpected circuit breaker result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// SendDM sends a plain DM with circuit breaker protection.
func (cbc *CircuitBreakerClient) SendDM(ctx context.Context, pageID, accessToken, recipientID, text string) (string, error) {
	return castResult[string](cbc.execute(func() (interface{}, error) {
		return cbc.client.SendDM(ctx, pageID, accessToken, recipientID, text)
	}))
}

// SendDMWithButton sends a quick-reply DM with circuit breaker protection.
func (cbc *CircuitBreakerClient) SendDMWithButton(ctx context.Context, pageID, accessToken, recipientID, text, buttonTitle, payload string) (string, error) {
	return castResult[string](cbc.execute(func() (interface{}, error) {
		return cbc.client.SendDMWithButton(ctx, pageID, accessToken, recipientID, text, buttonTitle, payload)
	}))
}

// SendPrivateReply sends a private reply with circuit breaker protection.
func (cbc *CircuitBreakerClient) SendPrivateReply(ctx context.Context, accessToken, commentID, text string) (string, error) {
	return castResult[string](cbc.execute(func() (interface{}, error) {
		return cbc.client.SendPrivateReply(ctx, accessToken, commentID, text)
	}))
}

// ReplyToComment posts a public reply with circuit breaker protection.
func (cbc *CircuitBreakerClient) ReplyToComment(ctx context.Context, accessToken, commentID, text string) error {
	_, err := cbc.execute(func() (interface{}, error) {
		return nil, cbc.client.ReplyToComment(ctx, accessToken, commentID, text)
	})
	return err
}

// GetMedia lists media with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetMedia(ctx context.Context, igUserID, accessToken string) ([]Media, error) {
	return castResult[[]Media](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetMedia(ctx, igUserID, accessToken)
	}))
}

// GetStories lists stories with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetStories(ctx context.Context, igUserID, accessToken string) ([]Media, error) {
	return castResult[[]Media](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetStories(ctx, igUserID, accessToken)
	}))
}

// GetLiveMedia lists live broadcasts with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetLiveMedia(ctx context.Context, igUserID, accessToken string) ([]Media, error) {
	return castResult[[]Media](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetLiveMedia(ctx, igUserID, accessToken)
	}))
}
