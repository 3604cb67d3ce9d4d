package extractor

import (
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"

	"bananaslides/internal/domain"
	"bananaslides/internal/port"
)

// assignIDs converts detected regions into layout elements with ids derived from
// tree position and geometry. Re-extracting an unchanged layout yields the same ids,
// and the position prefix keeps them unique within the page.
func assignIDs(regions []port.DetectedRegion) []domain.LayoutElement {
	return assign(regions, "")
}

func assign(regions []port.DetectedRegion, parent string) []domain.LayoutElement {
	if len(regions) == 0 {
		return nil
	}
	out := make([]domain.LayoutElement, len(regions))
	for i, r := range regions {
		path := strconv.Itoa(i)
		if parent != "" {
			path = parent + "." + path
		}
		out[i] = domain.LayoutElement{
			ID:         elementID(path, r.Type, r.BBox),
			Type:       r.Type,
			BBox:       r.BBox,
			Content:    r.Content,
			Confidence: r.Confidence,
			Children:   assign(r.Children, path),
		}
	}
	return out
}

func elementID(path string, t domain.ElementType, b domain.BBox) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%.0f|%.0f|%.0f|%.0f", t, math.Round(b.X0), math.Round(b.Y0), math.Round(b.X1), math.Round(b.Y1))
	return fmt.Sprintf("e%s-%08x", strings.ReplaceAll(path, ".", "_"), h.Sum32())
}
