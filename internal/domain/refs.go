package domain

// System names a remote store taking part in a sync.
type System string

const (
	Marvin System = "marvin"
	Notion System = "notion"
	Garmin System = "garmin"
)

// Refs holds the cross-reference ids of one entity, one per system.
type Refs struct {
	MarvinID string
	NotionID string
	GarminID string
}

// ID returns the foreign key for sys, or "" when unset.
func (r Refs) ID(sys System) string {
	switch sys {
	case Marvin:
		return r.MarvinID
	case Notion:
		return r.NotionID
	case Garmin:
		return r.GarminID
	}
	return ""
}

// SetID records the foreign key for sys.
func (r *Refs) SetID(sys System, id string) {
	switch sys {
	case Marvin:
		r.MarvinID = id
	case Notion:
		r.NotionID = id
	case Garmin:
		r.GarminID = id
	}
}

// Empty reports whether no system key is set. Such an entity cannot be
// matched against any counterpart.
func (r Refs) Empty() bool {
	return r.MarvinID == "" && r.NotionID == "" && r.GarminID == ""
}
