package learning

import (
	"github.com/jonathan/talent-sourcer/internal/routing"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// Rating cut points used when judging hired outcomes.
const (
	goodRating  = 4.0
	greatRating = 4.5
)

// Threshold caps and floors for automatic adjustment.
const (
	capFasttrackOnPoorHire    = 95.0
	capInterviewOnPoorHire    = 85.0
	capInterviewOnLateReject  = 80.0
	capTakehomeOnLateReject   = 70.0
	floorInterviewOnGreatHire = 70.0
	floorTakehomeOnGreatHire  = 55.0
)

// minBandGap is the smallest distance an adjustment leaves between neighbouring thresholds.
const minBandGap = 1.0

// Judge decides whether a predicted score agreed with what actually happened.
// A nil rating means none was reported. Withdrawals are NotApplicable.
func Judge(predictedScore float64, label types.OutcomeLabel, rating *float64) types.Correctness {
	var ok bool
	switch label {
	case types.OutcomeHired:
		if rating != nil {
			if *rating >= goodRating {
				ok = predictedScore >= 75
			} else {
				ok = predictedScore < 75
			}
		} else {
			ok = predictedScore >= 60
		}
	case types.OutcomeRejectedInterview:
		ok = predictedScore < 85
	case types.OutcomeRejectedScreen:
		ok = predictedScore < 70
	case types.OutcomeRejectedSourcing:
		ok = predictedScore < 60
	case types.OutcomeWithdrew:
		return types.NotApplicable
	default:
		ok = false
	}
	if ok {
		return types.Correct
	}
	return types.Incorrect
}

// HiringSuccess reports whether an outcome counts as a true positive for precision tracking.
func HiringSuccess(label types.OutcomeLabel, rating *float64) bool {
	return label == types.OutcomeHired && (rating == nil || *rating >= goodRating)
}

// Adjust returns the thresholds after nudging them for one incorrect prediction.
// It must only be called for Incorrect judgments. A nudge stops minBandGap short of the
// neighbouring threshold, so ascending thresholds stay ascending.
func Adjust(t routing.Thresholds, predictedScore float64, label types.OutcomeLabel, rating *float64, learningRate float64) routing.Thresholds {
	step := learningRate * 5

	switch {
	case label == types.OutcomeHired && rating != nil && *rating < goodRating:
		// too generous
		if predictedScore < 90 {
			t.Fasttrack = raise(t.Fasttrack, step, capFasttrackOnPoorHire)
		}
		if predictedScore < 75 {
			t.Interview = raise(t.Interview, step, min(capInterviewOnPoorHire, t.Fasttrack-minBandGap))
		}
	case label == types.OutcomeRejectedInterview || label == types.OutcomeRejectedScreen:
		// advanced too early
		if predictedScore >= 75 {
			t.Interview = raise(t.Interview, step, min(capInterviewOnLateReject, t.Fasttrack-minBandGap))
		}
		if predictedScore >= 60 {
			t.Takehome = raise(t.Takehome, step, min(capTakehomeOnLateReject, t.Interview-minBandGap))
		}
	case label == types.OutcomeHired && rating != nil && *rating >= greatRating:
		// too conservative on a clear win
		t.Takehome = lower(t.Takehome, step/2, max(floorTakehomeOnGreatHire, t.Reject+minBandGap))
		t.Interview = lower(t.Interview, step/2, max(floorInterviewOnGreatHire, t.Takehome+minBandGap))
	}
	return t
}

// raise adds step without crossing limit. A value already past the limit is left alone.
func raise(v, step, limit float64) float64 {
	if v >= limit {
		return v
	}
	return min(limit, v+step)
}

func lower(v, step, limit float64) float64 {
	if v <= limit {
		return v
	}
	return max(limit, v-step)
}
