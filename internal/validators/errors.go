// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package validators

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported type for validation")
	ErrUnknownField    = errors.New("unknown field for validation")

	ErrInvalidEntity        = errors.New("invalid entity")
	ErrMissingChild         = errors.New("child reference is required")
	ErrInvalidMDATResult    = errors.New("invalid MDAT result")
	ErrInvalidReferralState = errors.New("invalid referral status")
	ErrInvalidTierLevel     = errors.New("invalid tier level")
	ErrEmptyUsername        = errors.New("username is required")
	ErrInvalidSex           = errors.New("invalid sex")
)
