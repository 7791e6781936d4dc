// Package layout implements the column analyzer: given a rasterized
// page image, yield column strips in left-to-right reading order.
//
// Separator detection is a column-darkness run scan (a long contiguous
// dark run in one pixel column marks a ruled separator), with a
// projection-profile gap analysis as the fallback for pages whose
// columns are divided by whitespace rather than a drawn rule.
package layout

import (
	"image"
	"image/color"
	"sort"

	"github.com/kpark/examsplit/internal/geometry"
	"github.com/kpark/examsplit/internal/mempool"
)

const (
	// DefaultMergeTolerance is MERGE_TOLERANCE: candidate vertical lines
	// within this many pixels of each other collapse into one.
	DefaultMergeTolerance = 20
	// DefaultGapThreshold is GAP_THRESHOLD for the content-gap fallback.
	DefaultGapThreshold = 50
	// DefaultMinColumnWidth is the absolute floor for MIN_COLUMN_WIDTH;
	// the effective floor is max(DefaultMinColumnWidth, 10% of page width).
	DefaultMinColumnWidth = 100
	// DefaultMaxColumns caps the number of strips Analyze ever returns.
	DefaultMaxColumns = 3

	interiorBandMin = 0.20
	interiorBandMax = 0.80

	binarizeThreshold = 160
	// lineRunFraction is the fraction of page height a column's longest
	// contiguous dark run must reach to count as a vertical-line candidate.
	lineRunFraction = 0.6
)

// Strip is one column, in the page's pixel space, ordered left to right.
type Strip struct {
	Index int
	Rect  geometry.Rect
}

// Options configures one Analyze call.
type Options struct {
	MergeTolerance int
	GapThreshold   int
	MinColumnWidth int
	MaxColumns     int
}

// DefaultOptions returns the tuned defaults for 200 DPI exam scans.
func DefaultOptions() Options {
	return Options{
		MergeTolerance: DefaultMergeTolerance,
		GapThreshold:   DefaultGapThreshold,
		MinColumnWidth: DefaultMinColumnWidth,
		MaxColumns:     DefaultMaxColumns,
	}
}

// Analyze yields column strips for one page image. It never fails hard:
// on any degenerate input it falls back to a single full-page strip.
func Analyze(img image.Image, opts Options) []Strip {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}

	fullPage := func() []Strip {
		rect, err := geometry.NewRect(0, 0, w, h)
		if err != nil {
			return nil
		}
		return []Strip{{Index: 0, Rect: rect}}
	}

	mask := binarize(img, binarizeThreshold)
	defer mempool.PutBool(mask)

	splits := lineCandidates(mask, w, h)
	splits = mergeNearby(splits, opts.MergeTolerance)
	splits = filterInteriorBand(splits, w)

	if len(splits) == 0 {
		splits = gapSplits(mask, w, h, opts.GapThreshold)
	}

	if len(splits) == 0 {
		return fullPage()
	}

	strips := buildStrips(splits, w, h)
	strips = dropNarrow(strips, effectiveMinWidth(opts.MinColumnWidth, w))
	strips = capColumns(strips, opts.MaxColumns)

	if len(strips) == 0 {
		return fullPage()
	}
	return reindex(strips)
}

func effectiveMinWidth(configured, pageWidth int) int {
	tenPercent := pageWidth / 10
	if tenPercent > configured {
		return tenPercent
	}
	return configured
}

// binarize converts img to a dark/light bitmap using Rec.601 luma,
// matching internal/ocr/local's thresholding convention.
func binarize(img image.Image, threshold uint8) []bool {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	mask := mempool.GetBool(w * h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gray := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			mask[y*w+x] = gray.Y < threshold
		}
	}
	return mask
}

// lineCandidates finds x-coordinates whose column has a contiguous dark
// run spanning at least lineRunFraction of the page height: a surrogate
// for Hough-transform vertical-line detection.
func lineCandidates(mask []bool, w, h int) []int {
	minRun := int(float64(h) * lineRunFraction)
	var candidates []int
	for x := 0; x < w; x++ {
		run, best := 0, 0
		for y := 0; y < h; y++ {
			if mask[y*w+x] {
				run++
				if run > best {
					best = run
				}
			} else {
				run = 0
			}
		}
		if best >= minRun {
			candidates = append(candidates, x)
		}
	}
	return candidates
}

// mergeNearby collapses candidates within tolerance pixels of each other
// into a single split at their mean x, so a thick rule drawn as a
// line pair yields one separator, not two.
func mergeNearby(candidates []int, tolerance int) []int {
	if len(candidates) == 0 {
		return nil
	}
	sort.Ints(candidates)
	var merged []int
	group := []int{candidates[0]}
	flush := func() {
		sum := 0
		for _, v := range group {
			sum += v
		}
		merged = append(merged, sum/len(group))
	}
	for _, c := range candidates[1:] {
		if c-group[len(group)-1] <= tolerance {
			group = append(group, c)
			continue
		}
		flush()
		group = []int{c}
	}
	flush()
	return merged
}

// filterInteriorBand keeps only splits within the interior 20-80% x-band
// of the page; rules in the outer margins are page borders, not
// column separators.
func filterInteriorBand(splits []int, pageWidth int) []int {
	lo := int(float64(pageWidth) * interiorBandMin)
	hi := int(float64(pageWidth) * interiorBandMax)
	var out []int
	for _, s := range splits {
		if s >= lo && s <= hi {
			out = append(out, s)
		}
	}
	return out
}

// gapSplits is the content-gap fallback for pages with no drawn rule:
// a smoothed vertical projection of dark-pixel counts, with wide local
// minima in the interior band taken as column separators.
func gapSplits(mask []bool, w, h int, gapThreshold int) []int {
	projection := make([]int, w)
	for x := 0; x < w; x++ {
		count := 0
		for y := 0; y < h; y++ {
			if mask[y*w+x] {
				count++
			}
		}
		projection[x] = count
	}
	smoothed := smooth(projection, 5)

	lo := int(float64(w) * interiorBandMin)
	hi := int(float64(w) * interiorBandMax)

	// A column counts as "empty" when its smoothed dark-pixel count is
	// at most 1% of the page height - near enough to all-whitespace.
	emptyThreshold := h / 100

	// A gap is a local minimum only when ink lies on both sides of it;
	// whitespace with no content beyond the band's edge is page margin.
	inkIn := func(from, to int) bool {
		for x := from; x < to; x++ {
			if smoothed[x] > emptyThreshold {
				return true
			}
		}
		return false
	}

	var splits []int
	runStart := -1
	for x := lo; x <= hi; x++ {
		if smoothed[x] <= emptyThreshold {
			if runStart == -1 {
				runStart = x
			}
			continue
		}
		if runStart != -1 {
			if x-runStart >= gapThreshold && (runStart > lo || inkIn(0, lo)) {
				splits = append(splits, (runStart+x)/2)
			}
			runStart = -1
		}
	}
	if runStart != -1 && hi-runStart >= gapThreshold && (runStart > lo || inkIn(0, lo)) && inkIn(hi+1, w) {
		splits = append(splits, (runStart+hi)/2)
	}
	return splits
}

func smooth(series []int, radius int) []int {
	out := make([]int, len(series))
	for i := range series {
		lo, hi := i-radius, i+radius
		if lo < 0 {
			lo = 0
		}
		if hi >= len(series) {
			hi = len(series) - 1
		}
		sum := 0
		for j := lo; j <= hi; j++ {
			sum += series[j]
		}
		out[i] = sum / (hi - lo + 1)
	}
	return out
}

// buildStrips turns ascending split x-coordinates into contiguous
// full-height strips covering [0, pageWidth).
func buildStrips(splits []int, pageWidth, pageHeight int) []Strip {
	sort.Ints(splits)
	bounds := append([]int{0}, splits...)
	bounds = append(bounds, pageWidth)

	strips := make([]Strip, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		left, right := bounds[i], bounds[i+1]
		if right <= left {
			continue
		}
		rect, err := geometry.NewRect(left, 0, right-left, pageHeight)
		if err != nil {
			continue
		}
		strips = append(strips, Strip{Rect: rect})
	}
	return strips
}

// dropNarrow removes strips below minWidth, merging each into whichever
// neighbor it's closer to by shared edge. A thick separator that
// survived merging must not become a spurious narrow column.
func dropNarrow(strips []Strip, minWidth int) []Strip {
	if len(strips) <= 1 {
		return strips
	}
	changed := true
	for changed && len(strips) > 1 {
		changed = false
		for i, s := range strips {
			if s.Rect.W >= minWidth {
				continue
			}
			var target int
			switch {
			case i == 0:
				target = 1
			case i == len(strips)-1:
				target = len(strips) - 2
			default:
				// merge into the neighbor sharing the longer adjoining edge;
				// a tie favors the left neighbor.
				target = i - 1
			}
			strips = mergeStrips(strips, i, target)
			changed = true
			break
		}
	}
	return strips
}

// mergeStrips merges strip index b into strip index a (in either
// order), returning the updated, re-sorted strip list.
func mergeStrips(strips []Strip, a, b int) []Strip {
	if a > b {
		a, b = b, a
	}
	left, right := strips[a].Rect, strips[b].Rect
	x := left.X
	if right.X < x {
		x = right.X
	}
	w := left.Right() - x
	if right.Right()-x > w {
		w = right.Right() - x
	}
	merged, err := geometry.NewRect(x, left.Y, w, left.H)
	if err != nil {
		merged = left
	}
	out := make([]Strip, 0, len(strips)-1)
	for i, s := range strips {
		switch {
		case i == a:
			out = append(out, Strip{Rect: merged})
		case i == b:
			continue
		default:
			out = append(out, s)
		}
	}
	return out
}

// capColumns enforces MaxColumns by keeping the widest strips and
// merging the rest into their nearest surviving neighbor.
func capColumns(strips []Strip, maxColumns int) []Strip {
	for len(strips) > maxColumns {
		narrowest := 0
		for i, s := range strips {
			if s.Rect.W < strips[narrowest].Rect.W {
				narrowest = i
			}
		}
		target := narrowest - 1
		if narrowest == 0 {
			target = 1
		}
		strips = mergeStrips(strips, narrowest, target)
	}
	return strips
}

func reindex(strips []Strip) []Strip {
	sort.Slice(strips, func(i, j int) bool { return strips[i].Rect.X < strips[j].Rect.X })
	for i := range strips {
		strips[i].Index = i
	}
	return strips
}
