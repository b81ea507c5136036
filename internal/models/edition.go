package models

// RelationshipAlternateEdition tags sibling links within an edition group.
const RelationshipAlternateEdition = "ALTERNATE_EDITION"

// EditionInfo identifies one edition of a work within an edition group
// (paperback vs. hardcover and so on). The highest-numbered edition in a
// group is marked primary; the others link to it.
type EditionInfo struct {
	GroupKey      string `json:"group_key"`
	EditionNumber int    `json:"edition_number"`
	Format        string `json:"format,omitempty"`
	IsPrimary     bool   `json:"is_primary"`
	PrimaryID     string `json:"primary_id,omitempty"`
}

// EditionLink is one primary→sibling relationship row. Links for a group
// are deleted and recreated wholesale on relink, which makes relinking
// idempotent.
type EditionLink struct {
	GroupKey     string `json:"group_key"`
	PrimaryID    string `json:"primary_id"`
	SiblingID    string `json:"sibling_id"`
	Relationship string `json:"relationship"`
	LinkSource   string `json:"link_source,omitempty"`
}
