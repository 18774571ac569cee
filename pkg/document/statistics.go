package document

import (
	"github.com/samber/lo"
)

// Statistics are per-label point and face counts. The store keeps them
// current incrementally, so for any document:
//
//	LabeledCount == sum(LabelStats)       LabeledCount + UnlabeledCount == len(points)
//	FaceLabeledCount == sum(FaceLabelStats)  FaceLabeledCount + FaceUnlabeledCount == len(faces)
type Statistics struct {
	LabelStats         map[int]int
	FaceLabelStats     map[int]int
	LabeledCount       int
	UnlabeledCount     int
	FaceLabeledCount   int
	FaceUnlabeledCount int
}

// NewStatistics returns all-zero statistics for a document of the given size.
func NewStatistics(totalPoints, totalFaces int) Statistics {
	return Statistics{
		LabelStats:         map[int]int{},
		FaceLabelStats:     map[int]int{},
		UnlabeledCount:     totalPoints,
		FaceUnlabeledCount: totalFaces,
	}
}

// ComputeStatistics scans points and faces from scratch.
func ComputeStatistics(points []Point, faces []Face) Statistics {
	s := NewStatistics(len(points), len(faces))
	for _, p := range points {
		s.MovePoint(NoLabel, p.LabelID)
	}
	for _, f := range faces {
		s.MoveFace(NoLabel, f.LabelID)
	}
	return s
}

// Clone returns a deep copy. Nil maps become empty maps, which is how the
// store treats absent statistics.
func (s Statistics) Clone() Statistics {
	c := s
	c.LabelStats = cloneCounts(s.LabelStats)
	c.FaceLabelStats = cloneCounts(s.FaceLabelStats)
	return c
}

func cloneCounts(m map[int]int) map[int]int {
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MovePoint records one point changing from label `from` to label `to`.
func (s *Statistics) MovePoint(from, to int) {
	if s.LabelStats == nil {
		s.LabelStats = map[int]int{}
	}
	s.LabeledCount, s.UnlabeledCount = move(s.LabelStats, s.LabeledCount, s.UnlabeledCount, from, to)
}

// MoveFace records one face changing from label `from` to label `to`.
func (s *Statistics) MoveFace(from, to int) {
	if s.FaceLabelStats == nil {
		s.FaceLabelStats = map[int]int{}
	}
	s.FaceLabeledCount, s.FaceUnlabeledCount = move(s.FaceLabelStats, s.FaceLabeledCount, s.FaceUnlabeledCount, from, to)
}

func move(buckets map[int]int, labeled, unlabeled, from, to int) (int, int) {
	from, to = NormalizeLabel(from), NormalizeLabel(to)
	if from == to {
		return labeled, unlabeled
	}
	if IsLabeled(from) {
		buckets[from]--
		if buckets[from] <= 0 {
			delete(buckets, from)
		}
		labeled--
		unlabeled++
	}
	if IsLabeled(to) {
		buckets[to]++
		labeled++
		unlabeled--
	}
	return labeled, unlabeled
}

// Consistent reports whether the statistics satisfy their invariants for a
// document of the given size.
func (s Statistics) Consistent(totalPoints, totalFaces int) bool {
	return s.LabeledCount == lo.Sum(lo.Values(s.LabelStats)) &&
		s.LabeledCount+s.UnlabeledCount == totalPoints &&
		s.FaceLabeledCount == lo.Sum(lo.Values(s.FaceLabelStats)) &&
		s.FaceLabeledCount+s.FaceUnlabeledCount == totalFaces
}
