package diffbot

import (
	"encoding/json"
	"time"
)

// Payload is the cleaned knowledge-graph response for one company.
type Payload struct {
	Data     []Result `json:"data"`
	Metadata Metadata `json:"metadata"`
}

// Metadata records when and for whom the payload was collected.
type Metadata struct {
	CollectedAt time.Time `json:"collected_at"`
	CompanyURL  string    `json:"company_url"`
	FromCache   bool      `json:"from_cache,omitempty"`
}

// Result wraps one matched entity.
type Result struct {
	Entity Entity `json:"entity"`
}

// Entity is an Organization record from the knowledge graph. Only the facts
// the extraction layer reads are modeled; the remainder is dropped during
// decoding.
type Entity struct {
	Name                string             `json:"name"`
	LinkedInURI         string             `json:"linkedInUri"`
	HomepageURI         string             `json:"homepageUri"`
	NbEmployees         int                `json:"nbEmployees"`
	NbEmployeesMax      int                `json:"nbEmployeesMax"`
	EmployeesRange      *EmployeesRange    `json:"employeesRange"`
	NaicsClassification []NaicsClass       `json:"naicsClassification"`
	EmployeeCategories  []EmployeeCategory `json:"employeeCategories"`
	Locations           LocationList       `json:"locations"`
	Location            LocationList       `json:"location"`
	Revenue             *RevenueFact       `json:"revenue"`
	Industries          IndustryList       `json:"industries"`
	Competitors         []Competitor       `json:"competitors"`
	Technographics      []Technographic    `json:"technographics"`
	Articles            []Article          `json:"articles"`
}

// AllLocations returns whichever of the singular or plural location facts
// the entity carries, plural first.
func (e *Entity) AllLocations() []Location {
	if len(e.Locations) > 0 {
		return e.Locations
	}
	return e.Location
}

// EmployeesRange brackets the headcount.
type EmployeesRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// NaicsClass is a NAICS industry classification fact, sometimes carrying its
// own headcount estimate.
type NaicsClass struct {
	Name        string `json:"name"`
	NbEmployees *int   `json:"nbEmployees"`
}

// EmployeeCategory is a per-department headcount fact.
type EmployeeCategory struct {
	Category    string `json:"category"`
	NbEmployees int    `json:"nbEmployees"`
}

// Location is a physical address fact.
type Location struct {
	Country    NamedValue `json:"country"`
	City       NamedValue `json:"city"`
	Region     NamedValue `json:"region"`
	PostalCode string     `json:"postalCode"`
	Address    string     `json:"address"`
	IsHQ       bool       `json:"isCurrent"`
}

// LocationList tolerates the graph returning either a single location object
// or a list of them.
type LocationList []Location

// UnmarshalJSON accepts both a JSON array and a single object.
func (l *LocationList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var list []Location
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*l = list
		return nil
	}
	var single Location
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = LocationList{single}
	return nil
}

// NamedValue is a graph fact that is sometimes a bare string and sometimes
// an object with a name field.
type NamedValue struct {
	Name string `json:"name"`
}

// UnmarshalJSON accepts both `"Austin"` and `{"name": "Austin"}`.
func (n *NamedValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &n.Name)
	}
	type alias NamedValue
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	n.Name = a.Name
	return nil
}

// RevenueFact is an annual-revenue fact.
type RevenueFact struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
	Range    string  `json:"range"`
}

// IndustryList tolerates industries given as strings or named objects.
type IndustryList []NamedValue

// Competitor is a similar-company fact.
type Competitor struct {
	Name     string `json:"name"`
	Homepage string `json:"homepageUri"`
	Summary  string `json:"summary"`
}

// Technographic is a detected-technology fact.
type Technographic struct {
	Technology NamedValue `json:"technology"`
}

// Article is a news fact attached to the entity.
type Article struct {
	Date    string `json:"date"`
	Title   string `json:"title"`
	URL     string `json:"pageUrl"`
	Summary string `json:"summary"`
}
