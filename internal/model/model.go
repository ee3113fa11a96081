package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels lists every table of the shape journal schema.
var DatabaseModels = []interface{}{
	&Session{},
	&ShapeEvent{},
}

// Session is one annotation run against a viewer page.
type Session struct {
	ID            string    `json:"id" gorm:"primarykey;size:36"` // uuid
	StartTime     time.Time `json:"startTime" gorm:"index:idx_session_start_time"`
	EndTime       time.Time `json:"endTime"`
	ViewerURL     string    `json:"viewerUrl" gorm:"size:255"`
	ViewerVersion string    `json:"viewerVersion" gorm:"size:64"`
}

func (*Session) TableName() string {
	return "sessions"
}

// ShapeEvent is one hotspot command sent to the viewer.
type ShapeEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_shapeevent_session_id"`
	Session   Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Seq       uint64    `json:"seq" gorm:"index:idx_shapeevent_seq"` // order within the session

	Action  string          `json:"action" gorm:"size:16"`                                 // create, update, remove
	ShapeID string          `json:"shapeId" gorm:"size:64;index:idx_shapeevent_shape_id"` // hotspot id, e.g. poly_1
	Kind    string          `json:"kind" gorm:"size:16"`                                   // polygon, freehand
	Anchors geom.LineString `json:"anchors"`                                               // x = bearing, y = elevation
	Style   datatypes.JSON  `json:"style"`                                                 // HotspotStyle, create only
}

func (*ShapeEvent) TableName() string {
	return "shape_events"
}
