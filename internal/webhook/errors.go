package webhook

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// DeliveryKind classifies how a delivery attempt failed at the transport
// level.
type DeliveryKind string

const (
	KindConnectionRefused DeliveryKind = "connection_refused"
	KindTimeout           DeliveryKind = "timeout"
	KindHTTP              DeliveryKind = "http"
	KindOther             DeliveryKind = "other"
)

// DeliveryError describes a failed webhook delivery attempt. Deliveries are
// never retried; the error is recorded and the message is done.
type DeliveryError struct {
	Kind DeliveryKind
	URL  string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook delivery to %s failed (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// classifyDeliveryError maps a transport error onto a DeliveryKind. DNS and
// TLS problems land in KindOther.
func classifyDeliveryError(url string, err error) *DeliveryError {
	kind := KindOther

	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = KindConnectionRefused
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}

	return &DeliveryError{Kind: kind, URL: url, Err: err}
}

// TemplateError reports a body template that did not yield valid JSON after
// variable substitution.
type TemplateError struct {
	Err error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("body template did not produce valid JSON: %v", e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}
