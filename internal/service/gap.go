package service

import "math"

// RelativeGap |objective-bound| / |objective| * 100；任一为空或 objective 为 0 时返回 nil
func RelativeGap(objective, bound *float64) *float64 {
	if objective == nil || bound == nil || *objective == 0 {
		return nil
	}
	v := math.Abs(*objective-*bound) / math.Abs(*objective) * 100
	return &v
}

// PairGap 返回 (|a-b|, |a-b|/|a|*100)。a 为 0 时相对间隙为 nil，任一为空时都为 nil
func PairGap(a, b *float64) (abs, rel *float64) {
	if a == nil || b == nil {
		return nil, nil
	}
	d := math.Abs(*a - *b)
	abs = &d
	if *a != 0 {
		r := d / math.Abs(*a) * 100
		rel = &r
	}
	return abs, rel
}
