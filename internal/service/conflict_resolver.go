// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"fmt"
	"slices"
	"time"

	"github.com/MKhiriev/go-field-sync/models"
)

type conflictResolver struct{}

func NewConflictResolver() ConflictResolver {
	return conflictResolver{}
}

// Resolve merges local and remote according to op:
//
//   - create: the version with the later lastModified wins, remote on a tie;
//   - update: remote scalars win unless zero, lastModified is the maximum,
//     reference collections are unioned with local order first and nested
//     objects are merged field by field;
//   - delete: local is the deleted version; the later timestamp wins and a
//     winning local deletion yields a tombstone.
//
// A nil side means the record exists only on the other side.
func (conflictResolver) Resolve(local, remote models.Entity, op models.OperationKind) (Resolution, error) {
	if local == nil && remote == nil {
		return Resolution{}, ErrNothingToResolve
	}
	if local != nil && remote != nil && local.Kind() != remote.Kind() {
		return Resolution{}, fmt.Errorf("%w: %s and %s", ErrKindMismatch, local.Kind(), remote.Kind())
	}

	switch op {
	case models.OpCreate:
		return Resolution{Entity: latest(local, remote)}, nil
	case models.OpDelete:
		return resolveDelete(local, remote), nil
	case models.OpUpdate:
		if local == nil {
			return Resolution{Entity: remote.Clone()}, nil
		}
		if remote == nil {
			return Resolution{Entity: local.Clone()}, nil
		}
		merged, err := mergeUpdate(local, remote)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Entity: merged}, nil
	}
	return Resolution{}, fmt.Errorf("unknown operation kind %q", op)
}

func latest(local, remote models.Entity) models.Entity {
	switch {
	case local == nil:
		return remote.Clone()
	case remote == nil:
		return local.Clone()
	case local.Modified().After(remote.Modified()):
		return local.Clone()
	}
	return remote.Clone()
}

func resolveDelete(local, remote models.Entity) Resolution {
	switch {
	case remote == nil:
		return Resolution{Entity: local.Clone(), Deleted: true}
	case local == nil:
		return Resolution{Entity: remote.Clone()}
	case local.Modified().After(remote.Modified()):
		return Resolution{Entity: local.Clone(), Deleted: true}
	}
	return Resolution{Entity: remote.Clone()}
}

func mergeUpdate(local, remote models.Entity) (models.Entity, error) {
	var out models.Entity

	switch l := local.(type) {
	case *models.Child:
		out = mergeChild(l, remote.(*models.Child))
	case *models.Screening:
		out = mergeScreening(l, remote.(*models.Screening))
	case *models.Tier:
		out = mergeTier(l, remote.(*models.Tier))
	case *models.Referral:
		out = mergeReferral(l, remote.(*models.Referral))
	case *models.User:
		out = mergeUser(l, remote.(*models.User))
	default:
		return nil, fmt.Errorf("%w: %T", models.ErrUnknownEntityKind, local)
	}

	out.SetID(pick(local.GetID(), remote.GetID()))
	out.Touch(maxTime(local.Modified(), remote.Modified()))
	return out, nil
}

func mergeChild(l, r *models.Child) *models.Child {
	return &models.Child{
		FullName:      pick(l.FullName, r.FullName),
		DateOfBirth:   pickTime(l.DateOfBirth, r.DateOfBirth),
		Sex:           pick(l.Sex, r.Sex),
		District:      pick(l.District, r.District),
		Village:       pick(l.Village, r.Village),
		GuardianName:  pick(l.GuardianName, r.GuardianName),
		GuardianPhone: pick(l.GuardianPhone, r.GuardianPhone),
		CreatedBy:     pick(l.CreatedBy, r.CreatedBy),
		ScreeningIDs:  union(l.ScreeningIDs, r.ScreeningIDs),
	}
}

func mergeScreening(l, r *models.Screening) *models.Screening {
	return &models.Screening{
		ChildID:        pick(l.ChildID, r.ChildID),
		ScreenedAt:     pickTime(l.ScreenedAt, r.ScreenedAt),
		MdatGM1:        pick(l.MdatGM1, r.MdatGM1),
		MdatFM1:        pick(l.MdatFM1, r.MdatFM1),
		MdatLF1:        pick(l.MdatLF1, r.MdatLF1),
		MdatSD1:        pick(l.MdatSD1, r.MdatSD1),
		ReferralNeeded: pick(l.ReferralNeeded, r.ReferralNeeded),
		CreatedBy:      pick(l.CreatedBy, r.CreatedBy),
		Notes:          union(l.Notes, r.Notes),
		Assessment:     mergeAssessment(l.Assessment, r.Assessment),
	}
}

func mergeAssessment(l, r *models.Assessment) *models.Assessment {
	switch {
	case l == nil && r == nil:
		return nil
	case l == nil:
		out := *r
		return &out
	case r == nil:
		out := *l
		return &out
	}
	return &models.Assessment{
		AgeMonths: pick(l.AgeMonths, r.AgeMonths),
		Score:     pick(l.Score, r.Score),
		Summary:   pick(l.Summary, r.Summary),
		Assessor:  pick(l.Assessor, r.Assessor),
		Outcome:   pick(l.Outcome, r.Outcome),
	}
}

func mergeTier(l, r *models.Tier) *models.Tier {
	return &models.Tier{
		ChildID:     pick(l.ChildID, r.ChildID),
		ScreeningID: pick(l.ScreeningID, r.ScreeningID),
		Level:       pick(l.Level, r.Level),
		AssignedAt:  pickTime(l.AssignedAt, r.AssignedAt),
		AssignedBy:  pick(l.AssignedBy, r.AssignedBy),
	}
}

func mergeReferral(l, r *models.Referral) *models.Referral {
	return &models.Referral{
		ChildID:     pick(l.ChildID, r.ChildID),
		ScreeningID: pick(l.ScreeningID, r.ScreeningID),
		Facility:    pick(l.Facility, r.Facility),
		Status:      pick(l.Status, r.Status),
		ReferredAt:  pickTime(l.ReferredAt, r.ReferredAt),
		CreatedBy:   pick(l.CreatedBy, r.CreatedBy),
		Notes:       union(l.Notes, r.Notes),
	}
}

func mergeUser(l, r *models.User) *models.User {
	return &models.User{
		Username:    pick(l.Username, r.Username),
		FullName:    pick(l.FullName, r.FullName),
		Role:        pick(l.Role, r.Role),
		District:    pick(l.District, r.District),
		Preferences: mergePreferences(l.Preferences, r.Preferences),
	}
}

func mergePreferences(l, r *models.Preferences) *models.Preferences {
	switch {
	case l == nil && r == nil:
		return nil
	case l == nil:
		out := *r
		return &out
	case r == nil:
		out := *l
		return &out
	}
	return &models.Preferences{
		Language:       pick(l.Language, r.Language),
		Theme:          pick(l.Theme, r.Theme),
		SyncOnCellular: pick(l.SyncOnCellular, r.SyncOnCellular),
		PageSize:       pick(l.PageSize, r.PageSize),
	}
}

// pick returns remote unless it is the zero value.
func pick[T comparable](local, remote T) T {
	var zero T
	if remote == zero {
		return local
	}
	return remote
}

func pickTime(local, remote time.Time) time.Time {
	if remote.IsZero() {
		return local
	}
	return remote
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// union returns local followed by the remote items it lacks, without
// duplicates.
func union[T comparable](local, remote []T) []T {
	if len(local) == 0 && len(remote) == 0 {
		return nil
	}

	out := make([]T, 0, len(local)+len(remote))
	for _, items := range [][]T{local, remote} {
		for _, item := range items {
			if !slices.Contains(out, item) {
				out = append(out, item)
			}
		}
	}
	return out
}
