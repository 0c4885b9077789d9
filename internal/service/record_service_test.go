// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/adapter"
	"github.com/MKhiriev/go-field-sync/internal/remotetest"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/internal/validators"
	"github.com/MKhiriev/go-field-sync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Save ────────────────────────────────────────────────────────────────────

func TestRecords_SaveOnlineSendsDirectly(t *testing.T) {
	h := newHarness(t, true)

	saved := h.save(newChild("Chikondi Banda"))

	assert.Equal(t, int64(1001), saved.GetID())
	assert.Equal(t, 1, h.server.Calls(http.MethodPost, models.KindChild))
	assert.Empty(t, h.queued())

	all, err := h.svc.Records.Query(context.Background(), models.KindChild, models.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(1001), all[0].GetID())
}

func TestRecords_SaveOnlineWithBacklogIsQueued(t *testing.T) {
	h := newHarness(t, false)
	h.save(newChild("Queued first"))
	h.monitor.SetOnline(true)

	h.save(newChild("Queued second"))

	assert.Zero(t, h.server.Calls(http.MethodPost, models.KindChild))
	assert.Len(t, h.queued(), 2)
}

func TestRecords_SaveOnlineNetworkFailureFallsBackToQueue(t *testing.T) {
	h := newHarness(t, true)
	h.server.FailNext(http.MethodPost, models.KindChild, 1, remotetest.Failure{Status: http.StatusBadGateway})

	saved := h.save(newChild("Chikondi Banda"))

	assert.True(t, models.IsTemporaryID(saved.GetID()))
	ops := h.queued()
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpCreate, ops[0].OperationKind)
	assert.Equal(t, saved.GetID(), ops[0].EntityID)
	assert.Equal(t, saved, h.local(models.KindChild, saved.GetID()))
}

func TestRecords_SaveOnlineRejectedCreateIsReverted(t *testing.T) {
	h := newHarness(t, true)
	h.server.FailNext(http.MethodPost, models.KindChild, 1, remotetest.Failure{Status: http.StatusUnprocessableEntity, Body: "dateOfBirth in the future"})

	_, err := h.svc.Records.Save(context.Background(), newChild("Chikondi Banda"))

	require.ErrorIs(t, err, adapter.ErrValidation)
	assert.Contains(t, err.Error(), "dateOfBirth in the future")

	all, err := h.svc.Records.Query(context.Background(), models.KindChild, models.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, h.queued())
}

func TestRecords_SaveOnlineRejectedUpdateIsReverted(t *testing.T) {
	h := newHarness(t, true)
	h.server.Seed(&models.Child{Meta: models.Meta{ID: 5, LastModified: t0}, FullName: "Five", Village: "Chilomoni"})
	h.sync()

	edited := h.local(models.KindChild, 5).(*models.Child)
	edited.Village = "Somewhere invalid"
	h.server.FailNext(http.MethodPut, models.KindChild, 1, remotetest.Failure{Status: http.StatusBadRequest, Body: "unknown village"})

	_, err := h.svc.Records.Save(context.Background(), edited)

	require.ErrorIs(t, err, adapter.ErrValidation)
	assert.Equal(t, "Chilomoni", h.local(models.KindChild, 5).(*models.Child).Village)
	assert.Empty(t, h.queued())
}

func TestRecords_SaveOnlineConflictIsMergedAndQueued(t *testing.T) {
	h := newHarness(t, true)
	h.server.Seed(&models.Child{Meta: models.Meta{ID: 5, LastModified: t0}, FullName: "Five"})
	h.sync()

	serverCopy, err := json.Marshal(&models.Child{
		Meta:          models.Meta{ID: 5, LastModified: t0.Add(time.Minute)},
		FullName:      "Five",
		GuardianPhone: "+265 999 000 111",
	})
	require.NoError(t, err)
	h.server.FailNext(http.MethodPut, models.KindChild, 1, remotetest.Failure{Status: http.StatusConflict, Body: string(serverCopy)})

	edited := h.local(models.KindChild, 5).(*models.Child)
	edited.Village = "Ndirande"
	saved := h.save(edited).(*models.Child)

	assert.Equal(t, "Ndirande", saved.Village)
	assert.Equal(t, "+265 999 000 111", saved.GuardianPhone)
	assert.Equal(t, saved, h.local(models.KindChild, 5))

	ops := h.queued()
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpUpdate, ops[0].OperationKind)
}

func TestRecords_SaveOnlineCreateConflictKeepsNewerServerCopy(t *testing.T) {
	h := newHarness(t, true)
	serverChild := &models.Child{
		Meta:         models.Meta{ID: 42, LastModified: t0.Add(time.Hour)},
		FullName:     "Registered at clinic",
		GuardianName: "Grace",
	}
	h.server.Seed(serverChild)
	body, err := json.Marshal(serverChild)
	require.NoError(t, err)
	h.server.FailNext(http.MethodPost, models.KindChild, 1, remotetest.Failure{Status: http.StatusConflict, Body: string(body)})

	saved := h.save(newChild("Chikondi Banda")).(*models.Child)

	assert.Equal(t, int64(42), saved.ID)
	assert.Equal(t, "Registered at clinic", saved.FullName)
	assert.Equal(t, saved, h.local(models.KindChild, 42))
	assert.Zero(t, h.server.Calls(http.MethodPut, models.KindChild))
	assert.Empty(t, h.queued())

	all, err := h.svc.Records.Query(context.Background(), models.KindChild, models.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1, "the temporary record is replaced")
}

func TestRecords_SaveOnlineCreateConflictSendsNewerLocalVersion(t *testing.T) {
	h := newHarness(t, true)
	serverChild := &models.Child{Meta: models.Meta{ID: 42, LastModified: t0.Add(-time.Hour)}, FullName: "Old entry"}
	h.server.Seed(serverChild)
	body, err := json.Marshal(serverChild)
	require.NoError(t, err)
	h.server.FailNext(http.MethodPost, models.KindChild, 1, remotetest.Failure{Status: http.StatusConflict, Body: string(body)})

	saved := h.save(newChild("Chikondi Banda")).(*models.Child)

	assert.Equal(t, int64(42), saved.ID)
	assert.Equal(t, "Chikondi Banda", saved.FullName)
	assert.Equal(t, 1, h.server.Calls(http.MethodPut, models.KindChild))
	assert.Empty(t, h.queued())

	onServer, ok := h.server.Get(models.KindChild, 42)
	require.True(t, ok)
	assert.Equal(t, "Chikondi Banda", onServer.(*models.Child).FullName)
}

func TestRecords_SaveOnlineCreateConflictQueuesUnsentLocalVersion(t *testing.T) {
	h := newHarness(t, true)
	serverChild := &models.Child{Meta: models.Meta{ID: 42, LastModified: t0.Add(-time.Hour)}, FullName: "Old entry"}
	h.server.Seed(serverChild)
	body, err := json.Marshal(serverChild)
	require.NoError(t, err)
	h.server.FailNext(http.MethodPost, models.KindChild, 1, remotetest.Failure{Status: http.StatusConflict, Body: string(body)})
	h.server.FailNext(http.MethodPut, models.KindChild, 1, remotetest.Failure{Status: http.StatusServiceUnavailable})

	saved := h.save(newChild("Chikondi Banda"))

	assert.Equal(t, int64(42), saved.GetID())
	ops := h.queued()
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpCreate, ops[0].OperationKind)
	assert.Equal(t, int64(42), ops[0].EntityID)

	h.clock.Advance(time.Minute)
	h.sync()

	onServer, ok := h.server.Get(models.KindChild, 42)
	require.True(t, ok)
	assert.Equal(t, "Chikondi Banda", onServer.(*models.Child).FullName)
	assert.Empty(t, h.queued())
}

func TestRecords_SaveReferencingUnsyncedParentIsQueued(t *testing.T) {
	h := newHarness(t, false)
	child := h.save(newChild(""))
	h.server.FailNext(http.MethodPost, models.KindChild, 1, remotetest.Failure{Status: http.StatusUnprocessableEntity, Body: "fullName required"})
	h.monitor.SetOnline(true)
	h.sync()
	require.Equal(t, 1, h.status().FailedCount)
	require.Zero(t, h.status().PendingCount)

	screening := h.save(&models.Screening{ChildID: child.GetID(), ScreenedAt: t0})

	assert.True(t, models.IsTemporaryID(screening.GetID()))
	assert.Zero(t, h.server.Calls(http.MethodPost, models.KindScreening))
	assert.Empty(t, h.server.All(models.KindScreening))

	ops := h.queued()
	require.Len(t, ops, 2)
	assert.Equal(t, models.KindScreening, ops[1].EntityKind)
	assert.Equal(t, models.OpCreate, ops[1].OperationKind)
	assert.False(t, ops[1].Failed)
}

func TestRecords_SaveStampsDerivedFields(t *testing.T) {
	h := newHarness(t, false)

	screening := h.save(&models.Screening{ChildID: 3, ScreenedAt: t0, MdatLF1: models.ResultFail}).(*models.Screening)
	referral := h.save(&models.Referral{ChildID: 3, ReferredAt: t0}).(*models.Referral)
	tier := h.save(&models.Tier{ChildID: 3, Level: 2, AssignedAt: t0, AssignedBy: 12}).(*models.Tier)

	assert.True(t, screening.ReferralNeeded)
	assert.Equal(t, int64(fieldWorkerID), screening.CreatedBy)
	assert.Equal(t, models.ReferralPending, referral.Status)
	assert.Equal(t, int64(12), tier.AssignedBy, "an explicit assignee is kept")
}

func TestRecords_SaveRejectsInvalidInput(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.Records.Save(ctx, nil)
	assert.ErrorIs(t, err, ErrNilEntity)

	_, err = h.svc.Records.Save(ctx, &models.Child{Meta: models.Meta{ID: -42}})
	assert.ErrorIs(t, err, store.ErrRecordNotFound, "unknown temporary ids are not invented")
}

func TestRecords_SaveRejectsLocallyInvalidRecord(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.svc.Records.Save(context.Background(), &models.Screening{ChildID: 3, MdatGM1: "unclear"})

	require.ErrorIs(t, err, validators.ErrInvalidMDATResult)
	assert.Zero(t, h.server.TotalCalls(http.MethodPost))
	assert.Empty(t, h.queued())

	all, err := h.svc.Records.Query(context.Background(), models.KindScreening, models.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRecords_SaveDoesNotMutateArgument(t *testing.T) {
	h := newHarness(t, false)
	child := newChild("Chikondi Banda")

	h.save(child)

	assert.Zero(t, child.ID)
	assert.True(t, child.LastModified.IsZero())
}

// ── Delete ──────────────────────────────────────────────────────────────────

func TestRecords_DeleteOnlineSendsDirectly(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.server.Seed(&models.Child{Meta: models.Meta{ID: 5, LastModified: t0}, FullName: "Five"})
	h.sync()

	require.NoError(t, h.svc.Records.Delete(ctx, models.KindChild, 5))

	assert.Equal(t, 1, h.server.Calls(http.MethodDelete, models.KindChild))
	_, ok := h.server.Get(models.KindChild, 5)
	assert.False(t, ok)
	assert.Empty(t, h.queued())
}

func TestRecords_DeleteDropsPendingChanges(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.server.Seed(&models.Child{Meta: models.Meta{ID: 5, LastModified: t0}, FullName: "Five"})
	h.sync()

	h.monitor.SetOnline(false)
	edited := h.local(models.KindChild, 5).(*models.Child)
	edited.Village = "Ndirande"
	h.save(edited)
	require.NoError(t, h.svc.Records.Delete(ctx, models.KindChild, 5))

	ops := h.queued()
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpDelete, ops[0].OperationKind)
}

func TestRecords_DeleteUnknownRecord(t *testing.T) {
	h := newHarness(t, false)

	err := h.svc.Records.Delete(context.Background(), models.KindChild, 404)

	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

// ── Query ───────────────────────────────────────────────────────────────────

func TestRecords_Query(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	infant := newChild("Infant")
	infant.DateOfBirth = t0.AddDate(0, -3, 0)
	infant.Village = "Ndirande"
	toddler := newChild("Toddler")
	toddler.DateOfBirth = t0.AddDate(-1, -6, 0)
	toddler.Village = "Chilomoni"
	elsewhere := newChild("Elsewhere")
	elsewhere.District = "Zomba"
	elsewhere.DateOfBirth = t0.AddDate(0, -2, 0)

	for _, c := range []*models.Child{infant, toddler, elsewhere} {
		h.save(c)
	}

	byIndex, err := h.svc.Records.Query(ctx, models.KindChild, models.Filter{Index: "district", Value: "Blantyre"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Infant", "Toddler"}, names(byIndex))

	underSix, err := h.svc.Records.Query(ctx, models.KindChild, models.Filter{
		Index: "district",
		Value: "Blantyre",
		Where: []models.Predicate{models.InAgeBucket{Field: "dateOfBirth", Bucket: models.AgeUnder6Months, Now: t0}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Infant"}, names(underSix))

	byName, err := h.svc.Records.Query(ctx, models.KindChild, models.Filter{
		Where: []models.Predicate{models.FieldContains{Field: "fullName", Substring: "LSEW"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Elsewhere"}, names(byName))

	got, err := h.svc.Records.Get(ctx, models.KindChild, byName[0].GetID())
	require.NoError(t, err)
	assert.Equal(t, byName[0], got)
}

func names(entities []models.Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.(*models.Child).FullName)
	}
	return out
}
