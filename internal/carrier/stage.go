package carrier

// Stage is the normalized delivery stage of a shipment.
type Stage string

const (
	StageCancelled      Stage = "CANCELLED"
	StageOrdered        Stage = "ORDERED"
	StageProcessing     Stage = "PROCESSING"
	StageShipped        Stage = "SHIPPED"
	StageOutForDelivery Stage = "OUT_FOR_DELIVERY"
	StageDelivered      Stage = "DELIVERED"
	StageFailed         Stage = "FAILED"
	StageReturnToOrigin Stage = "RTO"
)

// Failed and RTO share a rank with OutForDelivery: they are alternate
// outcomes at the same logistics depth, not further progress.
var stageRanks = map[Stage]int{
	StageCancelled:      0,
	StageOrdered:        1,
	StageProcessing:     2,
	StageShipped:        3,
	StageOutForDelivery: 4,
	StageDelivered:      5,
	StageFailed:         4,
	StageReturnToOrigin: 4,
}

var stageLabels = map[Stage]string{
	StageCancelled:      "Cancelled",
	StageOrdered:        "Ordered",
	StageProcessing:     "Processing",
	StageShipped:        "Shipped",
	StageOutForDelivery: "Out for delivery",
	StageDelivered:      "Delivered",
	StageFailed:         "Delivery failed",
	StageReturnToOrigin: "Returned to origin",
}

func (s Stage) String() string {
	return string(s)
}

// Rank is the 0-5 ordinal used for timelines. Unknown stages rank as Ordered.
func (s Stage) Rank() int {
	if rank, ok := stageRanks[s]; ok {
		return rank
	}
	return stageRanks[StageOrdered]
}

func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

func (s Stage) Valid() bool {
	_, ok := stageRanks[s]
	return ok
}

// FurtherThan reports whether s is strictly further along than other.
func (s Stage) FurtherThan(other Stage) bool {
	return s.Rank() > other.Rank()
}

// Terminal stages receive no further carrier updates.
func (s Stage) Terminal() bool {
	switch s {
	case StageCancelled, StageDelivered, StageReturnToOrigin:
		return true
	}
	return false
}

func ParseStage(raw string) (Stage, bool) {
	s := Stage(raw)
	return s, s.Valid()
}
