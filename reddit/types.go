package reddit

// Listing is the envelope Reddit wraps post lists in.
type Listing struct {
	Kind string      `json:"kind"`
	Data ListingData `json:"data"`
}

// ListingData holds the children of a listing.
type ListingData struct {
	After    string  `json:"after"`
	Children []Child `json:"children"`
}

// Child is one listing entry; for subreddit listings Kind is "t3" (link).
type Child struct {
	Kind string `json:"kind"`
	Data Post   `json:"data"`
}

// Post is the subset of a link's fields the skill uses.
type Post struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Title     string   `json:"title"`
	Permalink string   `json:"permalink"`
	URL       string   `json:"url"`
	Over18    bool     `json:"over_18"`
	Preview   *Preview `json:"preview,omitempty"`
}

// Preview holds Reddit-generated preview renditions of a post's media.
type Preview struct {
	Images []PreviewImage `json:"images"`
}

// PreviewImage is one previewed image with its available resolutions,
// ordered by Reddit from smallest to largest.
type PreviewImage struct {
	ID          string       `json:"id"`
	Source      Resolution   `json:"source"`
	Resolutions []Resolution `json:"resolutions"`
}

// Resolution is a single rendition. URL is HTML-entity-encoded as served.
type Resolution struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Resolutions returns the resolutions of the post's first preview image.
func (p Post) Resolutions() []Resolution {
	if p.Preview == nil || len(p.Preview.Images) == 0 {
		return nil
	}
	return p.Preview.Images[0].Resolutions
}
