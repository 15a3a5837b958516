package domain

// Route is the urgency classification of an item.
type Route string

const (
	RouteAlert  Route = "alert"
	RouteWeekly Route = "weekly"
)

// ParseRoute maps free text onto a known route, defaulting to weekly.
func ParseRoute(s string) Route {
	if Route(s) == RouteAlert {
		return RouteAlert
	}
	return RouteWeekly
}

// ItemStatus enumerates lifecycle milestones of a stored item.
type ItemStatus string

const (
	StatusIngested ItemStatus = "ingested"
)

// Scores holds every score attached to an item. All values lie in [0, 1].
type Scores struct {
	ValidityConf  float64 `json:"validity_conf"`
	Credibility   float64 `json:"credibility"`
	Novelty       float64 `json:"novelty"`
	Relevance     float64 `json:"relevance"`
	Actionability float64 `json:"actionability"`
	Overall       float64 `json:"overall"`
}

// Gate1Scores are the fields owned by the validity gate.
type Gate1Scores struct {
	ValidityConf float64
	Credibility  float64
	Novelty      float64
}

// Gate2Scores are the fields owned by the personalization gate.
type Gate2Scores struct {
	Relevance     float64
	Actionability float64
	Overall       float64
}

// Item is the persisted unit of knowledge, stored as item.json.
type Item struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	CanonicalURL    string     `json:"canonical_url"`
	SourceType      string     `json:"source_type"`
	SourceName      string     `json:"source_name"`
	PublishedAt     string     `json:"published_at,omitempty"`
	ContentType     string     `json:"type"`
	Status          ItemStatus `json:"status"`
	Route           Route      `json:"route"`
	Scores          Scores     `json:"scores"`
	Pillars         []string   `json:"pillars,omitempty"`
	Links           Links      `json:"links"`
	DurationSeconds int        `json:"duration_seconds,omitempty"`
}

// NewItem builds the initial record for a freshly created vault entry.
func NewItem(id string, c Candidate) Item {
	return Item{
		ID:           id,
		Title:        c.Title,
		CanonicalURL: c.URL,
		SourceType:   c.SourceType,
		SourceName:   c.SourceName,
		PublishedAt:  c.PublishedString(),
		ContentType:  c.ContentType,
		Status:       StatusIngested,
		Route:        RouteWeekly,
		Links:        c.Links,
	}
}

// ApplyGate1 merges validity-gate scores. Gate 1 may only escalate the route.
func (it *Item) ApplyGate1(s Gate1Scores, escalate bool) {
	it.Scores.ValidityConf = Clamp01(s.ValidityConf)
	it.Scores.Credibility = Clamp01(s.Credibility)
	it.Scores.Novelty = Clamp01(s.Novelty)
	if escalate {
		it.Route = RouteAlert
	}
}

// ApplyGate2 merges personalization-gate scores. An alert set by gate 1 is kept.
func (it *Item) ApplyGate2(s Gate2Scores, route Route) {
	it.Scores.Relevance = Clamp01(s.Relevance)
	it.Scores.Actionability = Clamp01(s.Actionability)
	it.Scores.Overall = Clamp01(s.Overall)
	if route == RouteAlert {
		it.Route = RouteAlert
	}
}

// ItemPatch lists the non-score fields that may be updated after creation.
// Nil fields are left untouched.
type ItemPatch struct {
	Pillars         []string
	Links           *Links
	DurationSeconds *int
	Status          *ItemStatus
}

// Apply merges the patch into the item. Links are unioned, never replaced.
func (it *Item) Apply(p ItemPatch) {
	if p.Pillars != nil {
		pillars := p.Pillars
		if len(pillars) > 3 {
			pillars = pillars[:3]
		}
		it.Pillars = append([]string(nil), pillars...)
	}
	if p.Links != nil {
		it.Links = it.Links.Merge(*p.Links)
	}
	if p.DurationSeconds != nil {
		it.DurationSeconds = *p.DurationSeconds
	}
	if p.Status != nil {
		it.Status = *p.Status
	}
}
