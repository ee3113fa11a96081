package convert

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/panodraw/annotator/internal/geo"
	"github.com/panodraw/annotator/internal/model"
	"github.com/panodraw/annotator/pkg/core"
)

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) (core.Session, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return core.Session{}, fmt.Errorf("invalid session id %q: %w", s.ID, err)
	}
	return core.Session{
		ID:            id,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		ViewerURL:     s.ViewerURL,
		ViewerVersion: s.ViewerVersion,
	}, nil
}

// ShapeEventToCore converts a GORM ShapeEvent to a core.ShapeEvent.
func ShapeEventToCore(e model.ShapeEvent) (core.ShapeEvent, error) {
	sessionID, err := uuid.Parse(e.SessionID)
	if err != nil {
		return core.ShapeEvent{}, fmt.Errorf("invalid session id %q: %w", e.SessionID, err)
	}

	var style *core.HotspotStyle
	if len(e.Style) > 0 && string(e.Style) != "null" {
		style = new(core.HotspotStyle)
		if err := json.Unmarshal(e.Style, style); err != nil {
			return core.ShapeEvent{}, fmt.Errorf("invalid style for %s: %w", e.ShapeID, err)
		}
	}

	var anchors []core.AngularPoint
	if !e.Anchors.IsEmpty() {
		anchors = geo.AnchorsFromLineString(e.Anchors)
	}

	return core.ShapeEvent{
		ID:        e.ID,
		SessionID: sessionID,
		Seq:       e.Seq,
		Time:      e.Time,
		Action:    core.ShapeAction(e.Action),
		ShapeID:   e.ShapeID,
		Kind:      core.ShapeKind(e.Kind),
		Anchors:   anchors,
		Style:     style,
	}, nil
}
