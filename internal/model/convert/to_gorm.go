// Package convert maps journal records between core and GORM models.
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/panodraw/annotator/internal/geo"
	"github.com/panodraw/annotator/internal/model"
	"github.com/panodraw/annotator/pkg/core"
	"gorm.io/datatypes"
)

// SessionToGorm converts a core.Session to a GORM Session.
func SessionToGorm(s core.Session) model.Session {
	return model.Session{
		ID:            s.ID.String(),
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		ViewerURL:     s.ViewerURL,
		ViewerVersion: s.ViewerVersion,
	}
}

// ShapeEventToGorm converts a core.ShapeEvent to a GORM ShapeEvent.
func ShapeEventToGorm(e core.ShapeEvent) (model.ShapeEvent, error) {
	style := datatypes.JSON("null")
	if e.Style != nil {
		data, err := json.Marshal(e.Style)
		if err != nil {
			return model.ShapeEvent{}, fmt.Errorf("failed to encode style for %s: %w", e.ShapeID, err)
		}
		style = datatypes.JSON(data)
	}

	return model.ShapeEvent{
		ID:        e.ID,
		Time:      e.Time,
		SessionID: e.SessionID.String(),
		Seq:       e.Seq,
		Action:    string(e.Action),
		ShapeID:   e.ShapeID,
		Kind:      string(e.Kind),
		Anchors:   geo.AnchorLineString(e.Anchors),
		Style:     style,
	}, nil
}
