package vocabulary

// ConceptType partitions the controlled vocabulary. People-role concepts
// describe roles (e.g. "plumber"), never individual persons.
type ConceptType string

const (
	TypeSoftware   ConceptType = "Software"
	TypeHardware   ConceptType = "Hardware"
	TypePersonRole ConceptType = "Person-role"
	TypePlace      ConceptType = "Place"
	TypeProject    ConceptType = "Project"
	TypeTopic      ConceptType = "Topic"
)

// Concept is one controlled-vocabulary entry.
type Concept struct {
	ID        string      `yaml:"id"`
	PrefLabel string      `yaml:"prefLabel"`
	AltLabels []string    `yaml:"altLabels,omitempty"`
	Type      ConceptType `yaml:"type"`
	Broader   []string    `yaml:"broader,omitempty"`
	Related   []string    `yaml:"related,omitempty"`
	// Watchlist keywords auto-attach a project when any of them appears
	// in a document, whether or not the LLM names the project.
	Watchlist []string `yaml:"watchlist,omitempty"`
}

// File is the on-disk vocabulary shape.
type File struct {
	Version      string    `yaml:"version"`
	Topics       []Concept `yaml:"topics"`
	Projects     []Concept `yaml:"projects"`
	Places       []Concept `yaml:"places"`
	Technologies []Concept `yaml:"technologies"`
	PeopleRoles  []Concept `yaml:"people_roles"`
}
