package checker

import (
	"strings"

	"github.com/Mindburn-Labs/fuse/pkg/spec"
)

// LawfulBasis represents the six GDPR Art. 6 legal bases for processing.
type LawfulBasis string

const (
	BasisConsent            LawfulBasis = "CONSENT"
	BasisContract           LawfulBasis = "CONTRACT"
	BasisLegalObligation    LawfulBasis = "LEGAL_OBLIGATION"
	BasisVitalInterest      LawfulBasis = "VITAL_INTEREST"
	BasisPublicInterest     LawfulBasis = "PUBLIC_INTEREST"
	BasisLegitimateInterest LawfulBasis = "LEGITIMATE_INTEREST"
)

func validLawfulBasis(raw string) bool {
	switch LawfulBasis(strings.ToUpper(raw)) {
	case BasisConsent, BasisContract, BasisLegalObligation,
		BasisVitalInterest, BasisPublicInterest, BasisLegitimateInterest:
		return true
	}
	return false
}

// checkGDPR requires every processing activity to declare an Art. 6 lawful
// basis, a non-negative retention period within max_retention_days (when
// constrained), and a transfer basis for cross-border processing. With
// require_dpo=true the evidence must also assert dpo_appointed.
func checkGDPR(s *spec.ComplianceSpec, data SystemData) Result {
	activities, ok := arrayField(data, "processing_activities")
	if !ok {
		return Fail
	}

	maxRetention, ok := intConstraint(s, "max_retention_days", -1)
	if !ok {
		return Fail
	}

	if s.Constraints["require_dpo"] == "true" {
		if appointed, ok := boolField(data, "dpo_appointed"); !ok || !appointed {
			return Fail
		}
	}

	for _, entry := range activities {
		activity, ok := asObject(entry)
		if !ok {
			return Fail
		}
		basis, ok := stringField(activity, "lawful_basis")
		if !ok || !validLawfulBasis(basis) {
			return Fail
		}
		retention, ok := intField(activity, "retention_days")
		if !ok || retention < 0 {
			return Fail
		}
		if maxRetention >= 0 && retention > maxRetention {
			return Fail
		}
		if crossBorder, present := activity["cross_border"]; present {
			cb, ok := crossBorder.(bool)
			if !ok {
				return Fail
			}
			if cb {
				transfer, ok := stringField(activity, "transfer_basis")
				if !ok || strings.TrimSpace(transfer) == "" {
					return Fail
				}
			}
		}
	}
	return Pass
}
