// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package pipeline

import (
	"github.com/wneessen/aprs-relay/internal/aprs"
	"github.com/wneessen/aprs-relay/internal/sink"
)

// DropReason names why a frame was not forwarded.
type DropReason int

const (
	// ReasonNone is the reason of a forwarded frame.
	ReasonNone DropReason = iota
	// ReasonComment drops server comments and keepalives.
	ReasonComment
	// ReasonDecode drops frames that could not be decoded.
	ReasonDecode
	// ReasonNoMatch drops frames of senders without a subscription.
	ReasonNoMatch
	// ReasonNoPosition drops matched frames without a position.
	ReasonNoPosition
	// ReasonBelowThreshold drops positions too close to the last reported one.
	ReasonBelowThreshold
	// ReasonDistanceError drops positions whose movement could not be computed.
	ReasonDistanceError
)

func (r DropReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonComment:
		return "comment"
	case ReasonDecode:
		return "decode"
	case ReasonNoMatch:
		return "no-match"
	case ReasonNoPosition:
		return "no-position"
	case ReasonBelowThreshold:
		return "below-threshold"
	case ReasonDistanceError:
		return "distance-error"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing a single frame: either dropped with a reason, or
// forwarded as an update. For forwarded frames Err holds the delivery error, if any.
type Outcome struct {
	Reason   DropReason
	Beacon   aprs.Beacon
	Update   sink.Update
	Distance float64
	Err      error
}

// Dropped returns the Outcome of a frame dropped for reason.
func Dropped(reason DropReason, err error) Outcome {
	return Outcome{Reason: reason, Err: err}
}

// Forwarded returns the Outcome of a frame that was accepted and handed to the sink.
func Forwarded(update sink.Update, distance float64, err error) Outcome {
	return Outcome{Reason: ReasonNone, Update: update, Distance: distance, Err: err}
}

// IsForwarded reports whether the frame was accepted for delivery. Delivery itself may still
// have failed.
func (o Outcome) IsForwarded() bool {
	return o.Reason == ReasonNone
}

// Delivered reports whether the frame was forwarded and delivered successfully.
func (o Outcome) Delivered() bool {
	return o.IsForwarded() && o.Err == nil
}
