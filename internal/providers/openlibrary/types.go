package openlibrary

// bookData matches one entry of the /api/books jscmd=data response.
type bookData struct {
	Key           string `json:"key"`
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	NumberOfPages int    `json:"number_of_pages"`
	PublishDate   string `json:"publish_date"`
	URL           string `json:"url"`
	Authors       []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	Subjects []struct {
		Name string `json:"name"`
	} `json:"subjects"`
	Identifiers struct {
		ISBN10 []string `json:"isbn_10"`
		ISBN13 []string `json:"isbn_13"`
	} `json:"identifiers"`
	Cover struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
}

// edition matches the /isbn/{isbn}.json edition document; used to
// backfill fields jscmd=data leaves empty.
type edition struct {
	Key           string   `json:"key"`
	NumberOfPages int      `json:"number_of_pages"`
	Publishers    []string `json:"publishers"`
	Languages     []struct {
		Key string `json:"key"`
	} `json:"languages"`
}
