package models

// ExtractedContent is the page payload submitted by the extension's content
// script. Field names follow the extension wire format.
type ExtractedContent struct {
	MainText string          `json:"mainText"`
	URL      string          `json:"url"`
	Metadata ContentMetadata `json:"metadata"`
}

// ContentMetadata carries page-level attributes captured during extraction.
type ContentMetadata struct {
	Platform               string `json:"platform"`
	ContentType            string `json:"contentType"`
	WordCount              int    `json:"wordCount"`
	HasInteractiveElements bool   `json:"hasInteractiveElements"`
	FormCount              int    `json:"formCount"`
}
