package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ShapeAction is the hotspot command a journal entry records.
type ShapeAction string

const (
	ActionCreate ShapeAction = "create"
	ActionUpdate ShapeAction = "update"
	ActionRemove ShapeAction = "remove"
)

// KindForID infers the shape kind from a hotspot id.
func KindForID(id string) ShapeKind {
	if strings.HasPrefix(id, ShapeFreehand.IDPrefix()) {
		return ShapeFreehand
	}
	return ShapePolygon
}

// Session is one annotation run against a viewer page.
type Session struct {
	ID            uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
	ViewerURL     string
	ViewerVersion string
}

// ShapeEvent is one hotspot command sent to the viewer.
type ShapeEvent struct {
	ID        uint
	SessionID uuid.UUID
	Seq       uint64
	Time      time.Time
	Action    ShapeAction
	ShapeID   string
	Kind      ShapeKind
	Anchors   []AngularPoint
	Style     *HotspotStyle // create only
}

// SessionExport is the JSON document written for a finished session.
type SessionExport struct {
	SessionID     string        `json:"sessionId"`
	StartTime     time.Time     `json:"startTime"`
	EndTime       time.Time     `json:"endTime"`
	ViewerURL     string        `json:"viewerUrl,omitempty"`
	ViewerVersion string        `json:"viewerVersion,omitempty"`
	Shapes        []ShapeExport `json:"shapes"`
	EventCount    int           `json:"eventCount"`
}

// ShapeExport is the final state of one hotspot in a session.
type ShapeExport struct {
	ID        string         `json:"id"`
	Kind      ShapeKind      `json:"kind"`
	Anchors   []AngularPoint `json:"anchors"`
	Style     *HotspotStyle  `json:"style,omitempty"`
	Removed   bool           `json:"removed"`
	Revisions int            `json:"revisions"`
	Created   time.Time      `json:"created"`
	Updated   time.Time      `json:"updated"`
}

// BuildExport folds events, in order, into the final shape list. Shapes keep
// the order of their create event.
func BuildExport(s Session, events []ShapeEvent) SessionExport {
	out := SessionExport{
		SessionID:     s.ID.String(),
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		ViewerURL:     s.ViewerURL,
		ViewerVersion: s.ViewerVersion,
		Shapes:        []ShapeExport{},
		EventCount:    len(events),
	}

	index := make(map[string]int)
	for _, e := range events {
		i, ok := index[e.ShapeID]
		if !ok {
			if e.Action != ActionCreate {
				continue
			}
			index[e.ShapeID] = len(out.Shapes)
			out.Shapes = append(out.Shapes, ShapeExport{
				ID:      e.ShapeID,
				Kind:    e.Kind,
				Anchors: append([]AngularPoint(nil), e.Anchors...),
				Style:   e.Style,
				Created: e.Time,
				Updated: e.Time,
			})
			continue
		}

		sh := &out.Shapes[i]
		sh.Updated = e.Time
		switch e.Action {
		case ActionCreate:
			// id reused after a remove
			sh.Kind = e.Kind
			sh.Anchors = append(sh.Anchors[:0], e.Anchors...)
			sh.Style = e.Style
			sh.Removed = false
			sh.Revisions++
		case ActionUpdate:
			sh.Anchors = append(sh.Anchors[:0], e.Anchors...)
			sh.Revisions++
		case ActionRemove:
			sh.Removed = true
		}
	}
	return out
}
