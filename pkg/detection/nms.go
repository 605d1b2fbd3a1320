package detection

import "sort"

// IoU returns intersection over union of two detections' boxes.
func IoU(a, b Detection) float64 {
	inter := a.Box.Intersect(b.Box)
	if inter.Empty() {
		return 0
	}
	i := float64(inter.Dx() * inter.Dy())
	u := float64(a.Area()+b.Area()) - i
	if u <= 0 {
		return 0
	}
	return i / u
}

// NMS performs greedy non-maximum suppression within each label: boxes are
// visited by descending confidence and any box overlapping a kept box of the
// same label by more than thresh is dropped. The input is not modified.
func NMS(dets []Detection, thresh float64) []Detection {
	if len(dets) == 0 {
		return nil
	}

	sorted := append([]Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.Label == d.Label && IoU(k, d) > thresh {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

// Filter returns the detections whose label is in labels.
func Filter(dets []Detection, labels ...string) []Detection {
	want := make(map[string]bool, len(labels))
	for _, l := range labels {
		want[l] = true
	}
	var out []Detection
	for _, d := range dets {
		if want[d.Label] {
			out = append(out, d)
		}
	}
	return out
}

// Threshold drops detections below minConf.
func Threshold(dets []Detection, minConf float64) []Detection {
	var out []Detection
	for _, d := range dets {
		if d.Confidence >= minConf {
			out = append(out, d)
		}
	}
	return out
}

// Largest returns the detection with the biggest box. Ties keep the earliest.
func Largest(dets []Detection) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}
	best := dets[0]
	for _, d := range dets[1:] {
		if d.Area() > best.Area() {
			best = d
		}
	}
	return best, true
}

// HasAny reports whether any detection carries one of labels.
func HasAny(dets []Detection, labels ...string) bool {
	for _, d := range dets {
		for _, l := range labels {
			if d.Label == l {
				return true
			}
		}
	}
	return false
}
