// Package report delivers frame events to the presentation layer: console, event log,
// websocket clients, ZMQ subscribers, snapshots and the session store.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/andresmejia3/emotag/internal/stream"
	"github.com/andresmejia3/emotag/internal/types"
)

// Face is the wire form of one DetectionResult.
type Face struct {
	Label  string            `json:"label" cbor:"label"`
	Glyphs []string          `json:"glyphs" cbor:"glyphs"`
	Glyph  string            `json:"glyph" cbor:"glyph"`
	Box    types.BoundingBox `json:"box" cbor:"box"`
}

// Message is the wire form of a FrameEvent shared by the recorder, hub and publisher.
type Message struct {
	Type     string `json:"type" cbor:"type"`
	Index    int    `json:"index" cbor:"index"`
	Time     int64  `json:"time" cbor:"time"`
	Analyzed bool   `json:"analyzed" cbor:"analyzed"`
	Found    bool   `json:"found" cbor:"found"`
	Faces    []Face `json:"faces,omitempty" cbor:"faces,omitempty"`
	Error    string `json:"error,omitempty" cbor:"error,omitempty"`
	JPEG     []byte `json:"jpeg,omitempty" cbor:"jpeg,omitempty"`
}

// NewMessage flattens ev. The frame pixels are not included.
func NewMessage(ev types.FrameEvent) Message {
	msg := Message{
		Type:     "frame",
		Index:    ev.Index,
		Time:     time.Now().UnixMilli(),
		Analyzed: ev.Analyzed(),
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	if ev.Result == nil || !ev.Result.Found {
		return msg
	}
	msg.Found = true

	faces := ev.Faces
	if len(faces) == 0 {
		faces = []types.DetectionResult{*ev.Result}
	}
	for _, f := range faces {
		msg.Faces = append(msg.Faces, Face{
			Label:  f.Label.String(),
			Glyphs: f.Glyphs[:],
			Glyph:  f.Glyph,
			Box:    f.Box,
		})
	}
	return msg
}

type multi []stream.Reporter

// Multi fans each event out to every reporter in order. All reporters see the event;
// their errors are joined.
func Multi(reporters ...stream.Reporter) stream.Reporter {
	var m multi
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m multi) Report(ctx context.Context, ev types.FrameEvent) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
