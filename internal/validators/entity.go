// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package validators

import (
	"context"
	"fmt"
	"slices"

	"github.com/MKhiriev/go-field-sync/models"
)

// Field names accepted by [EntityValidator.Validate].
const (
	FieldChildID  = "childId"
	FieldMDAT     = "mdat"
	FieldStatus   = "status"
	FieldLevel    = "level"
	FieldUsername = "username"
	FieldSex      = "sex"
)

// MaxTierLevel is the most intensive follow-up tier.
const MaxTierLevel = 3

var (
	allowedResults          = []string{"", models.ResultPass, models.ResultFail}
	allowedReferralStatuses = []string{"", models.ReferralPending, models.ReferralCompleted, models.ReferralCancelled}
	allowedSexes            = []string{"", "f", "m"}
)

// EntityValidator validates the entity kinds of the models package.
type EntityValidator struct{}

func NewEntityValidator() Validator {
	return &EntityValidator{}
}

// Validate dispatches on the entity type. Without fields every rule of the
// kind is checked. Errors wrap [ErrInvalidEntity].
func (v *EntityValidator) Validate(ctx context.Context, obj any, fields ...string) error {
	var err error

	switch e := obj.(type) {
	case *models.Child:
		err = v.validateChild(e, fields...)
	case *models.Screening:
		err = v.validateScreening(e, fields...)
	case *models.Tier:
		err = v.validateTier(e, fields...)
	case *models.Referral:
		err = v.validateReferral(e, fields...)
	case *models.User:
		err = v.validateUser(e, fields...)
	default:
		return ErrUnsupportedType
	}

	if err != nil && err != ErrUnknownField {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}
	return err
}

func (v *EntityValidator) validateChild(c *models.Child, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldSex}
	}

	for _, f := range fields {
		switch f {
		case FieldSex:
			if !slices.Contains(allowedSexes, c.Sex) {
				return fmt.Errorf("%w %q", ErrInvalidSex, c.Sex)
			}
		default:
			return ErrUnknownField
		}
	}
	return nil
}

func (v *EntityValidator) validateScreening(s *models.Screening, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldChildID, FieldMDAT}
	}

	for _, f := range fields {
		switch f {
		case FieldChildID:
			if s.ChildID == 0 {
				return ErrMissingChild
			}
		case FieldMDAT:
			for _, r := range []string{s.MdatGM1, s.MdatFM1, s.MdatLF1, s.MdatSD1} {
				if !slices.Contains(allowedResults, r) {
					return fmt.Errorf("%w %q", ErrInvalidMDATResult, r)
				}
			}
		default:
			return ErrUnknownField
		}
	}
	return nil
}

func (v *EntityValidator) validateTier(t *models.Tier, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldChildID, FieldLevel}
	}

	for _, f := range fields {
		switch f {
		case FieldChildID:
			if t.ChildID == 0 {
				return ErrMissingChild
			}
		case FieldLevel:
			if t.Level < 0 || t.Level > MaxTierLevel {
				return fmt.Errorf("%w %d", ErrInvalidTierLevel, t.Level)
			}
		default:
			return ErrUnknownField
		}
	}
	return nil
}

func (v *EntityValidator) validateReferral(r *models.Referral, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldChildID, FieldStatus}
	}

	for _, f := range fields {
		switch f {
		case FieldChildID:
			if r.ChildID == 0 {
				return ErrMissingChild
			}
		case FieldStatus:
			if !slices.Contains(allowedReferralStatuses, r.Status) {
				return fmt.Errorf("%w %q", ErrInvalidReferralState, r.Status)
			}
		default:
			return ErrUnknownField
		}
	}
	return nil
}

func (v *EntityValidator) validateUser(u *models.User, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldUsername}
	}

	for _, f := range fields {
		switch f {
		case FieldUsername:
			if u.Username == "" {
				return ErrEmptyUsername
			}
		default:
			return ErrUnknownField
		}
	}
	return nil
}
