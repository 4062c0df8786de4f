package reddit

import (
	"fmt"
	"strings"

	"github.com/wolfeidau/catso"
)

// Thresholds for picking preview renditions. A rendition qualifies when
// either dimension reaches the threshold.
const (
	SmallMinWidth  = 720
	SmallMinHeight = 480
	LargeMinWidth  = 1200
	LargeMinHeight = 800
)

// Variants holds the upstream URLs chosen for one post, entity-decoded.
type Variants struct {
	Small string
	Large string
}

// Same reports whether both variants point at the same rendition.
func (v Variants) Same() bool {
	return v.Small == v.Large
}

// SelectVariants picks the small and large renditions of post. Each is the
// first resolution meeting its threshold, in upstream order, falling back to
// the last resolution when none does.
func SelectVariants(post Post) (Variants, error) {
	res := post.Resolutions()
	if len(res) == 0 {
		return Variants{}, fmt.Errorf("post %q: %w", post.ID, catso.ErrNoImageAvailable)
	}

	small := firstAtLeast(res, SmallMinWidth, SmallMinHeight)
	large := firstAtLeast(res, LargeMinWidth, LargeMinHeight)

	return Variants{
		Small: decodeURL(small.URL),
		Large: decodeURL(large.URL),
	}, nil
}

func firstAtLeast(res []Resolution, width, height int) Resolution {
	for _, r := range res {
		if r.Width >= width || r.Height >= height {
			return r
		}
	}
	return res[len(res)-1]
}

// decodeURL undoes the &amp; escaping Reddit applies to preview URLs.
func decodeURL(u string) string {
	return strings.ReplaceAll(u, "&amp;", "&")
}
