package domain

import "time"

// Artifact kinds a capture can produce.
const (
	ArtifactScreenshot = "screenshot"
	ArtifactPDF        = "pdf"
	ArtifactHTML       = "html"
	ArtifactWARC       = "warc"
)

// AllArtifacts lists every supported artifact kind in emission order.
var AllArtifacts = []string{ArtifactScreenshot, ArtifactPDF, ArtifactHTML, ArtifactWARC}

// ValidArtifact reports whether k is a recognized artifact kind.
func ValidArtifact(k string) bool {
	switch k {
	case ArtifactScreenshot, ArtifactPDF, ArtifactHTML, ArtifactWARC:
		return true
	}
	return false
}

// CaptureResult is the structured outcome of one page capture.
type CaptureResult struct {
	Success   bool      `json:"success"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`

	Validation Classification    `json:"validation"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`

	PageTitle     string `json:"page_title,omitempty"`
	HTTPStatus    int    `json:"http_status,omitempty"`
	ContentLength int    `json:"content_length"`
	DurationMS    int    `json:"duration_ms"`

	Behaviors *BehaviorStats `json:"behaviors,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// BehaviorStats aggregates the effects of the content-expansion behaviors.
type BehaviorStats struct {
	OverlaysDismissed   int `json:"overlays_dismissed"`
	ScrollDepth         int `json:"scroll_depth"`
	ElementsExpanded    int `json:"elements_expanded"`
	TabsClicked         int `json:"tabs_clicked"`
	CarouselSlides      int `json:"carousel_slides"`
	CommentsLoaded      int `json:"comments_loaded"`
	InfiniteScrollPages int `json:"infinite_scroll_pages"`
	DurationMS          int `json:"duration_ms"`
}
