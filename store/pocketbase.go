package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"karaoke-live/internal/status"
	"karaoke-live/models"
)

// PB adapts the PocketBase app to the store interfaces. Conditional
// transitions run inside RunInTransaction; SQLite gives write
// transactions exclusive access, so an in-transaction recheck closes
// the race between two coordinators. The unique indexes declared in
// the migrations remain the final line of defense, and their raw
// violations are translated to the same typed conflicts.
type PB struct {
	app core.App
}

func NewPB(app core.App) *PB {
	return &PB{app: app}
}

func translateNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return status.ErrNotFound
	}
	return err
}

func translateUnique(err error, fallback error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fallback
	}
	return err
}

// ---- instances ----

func instanceFromRecord(r *core.Record) *models.Instance {
	return &models.Instance{
		ID:        r.Id,
		Name:      r.GetString("name"),
		Code:      r.GetString("code"),
		Status:    r.GetString("status"),
		Owner:     r.GetString("owner"),
		ExpiresAt: r.GetDateTime("expires_at").Time(),
		CreatedAt: r.GetDateTime("created").Time(),
		UpdatedAt: r.GetDateTime("updated").Time(),
	}
}

func (s *PB) InstanceByID(ctx context.Context, id string) (*models.Instance, error) {
	rec, err := s.app.FindRecordById("instances", id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return instanceFromRecord(rec), nil
}

func (s *PB) InstanceByCode(ctx context.Context, code string) (*models.Instance, error) {
	rec, err := s.app.FindFirstRecordByFilter(
		"instances",
		"code = {:code}",
		dbx.Params{"code": strings.ToUpper(strings.TrimSpace(code))},
	)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return instanceFromRecord(rec), nil
}

func (s *PB) InstanceByOwner(ctx context.Context, owner string) (*models.Instance, error) {
	rec, err := s.app.FindFirstRecordByFilter(
		"instances",
		"owner = {:owner}",
		dbx.Params{"owner": owner},
	)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return instanceFromRecord(rec), nil
}

func (s *PB) CreateInstance(ctx context.Context, inst *models.Instance) error {
	col, err := s.app.FindCollectionByNameOrId("instances")
	if err != nil {
		return err
	}

	rec := core.NewRecord(col)
	rec.Set("name", inst.Name)
	rec.Set("code", inst.Code)
	rec.Set("status", inst.Status)
	rec.Set("owner", inst.Owner)
	if !inst.ExpiresAt.IsZero() {
		rec.Set("expires_at", inst.ExpiresAt)
	}

	if err := s.app.Save(rec); err != nil {
		return translateUnique(err, fmt.Errorf("%w: join code already in use", status.ErrConflict))
	}

	*inst = *instanceFromRecord(rec)
	return nil
}

func (s *PB) SetInstanceStatus(ctx context.Context, id, newStatus string) (*models.Instance, error) {
	var out *models.Instance
	err := s.app.RunInTransaction(func(txApp core.App) error {
		rec, err := txApp.FindRecordById("instances", id)
		if err != nil {
			return translateNotFound(err)
		}
		rec.Set("status", newStatus)
		if err := txApp.Save(rec); err != nil {
			return err
		}
		out = instanceFromRecord(rec)
		return nil
	})
	return out, err
}

// ---- participants ----

func participantFromRecord(r *core.Record) *models.Participant {
	return &models.Participant{
		ID:         r.Id,
		InstanceID: r.GetString("instance"),
		Name:       r.GetString("name"),
		Phone:      r.GetString("phone"),
		Email:      r.GetString("email"),
		Device:     r.GetString("device"),
		CreatedAt:  r.GetDateTime("created").Time(),
		UpdatedAt:  r.GetDateTime("updated").Time(),
	}
}

func (s *PB) ParticipantByDevice(ctx context.Context, instanceID, device string) (*models.Participant, error) {
	rec, err := s.app.FindFirstRecordByFilter(
		"participants",
		"instance = {:instance} && device = {:device}",
		dbx.Params{"instance": instanceID, "device": device},
	)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return participantFromRecord(rec), nil
}

func (s *PB) CreateParticipant(ctx context.Context, p *models.Participant) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		_, err := txApp.FindFirstRecordByFilter(
			"participants",
			"instance = {:instance} && device = {:device}",
			dbx.Params{"instance": p.InstanceID, "device": p.Device},
		)
		if err == nil {
			return status.ErrDeviceRegistered
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if p.Email != "" {
			_, err = txApp.FindFirstRecordByFilter(
				"participants",
				"instance = {:instance} && email = {:email}",
				dbx.Params{"instance": p.InstanceID, "email": p.Email},
			)
			if err == nil {
				return status.ErrEmailTaken
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}

		col, err := txApp.FindCollectionByNameOrId("participants")
		if err != nil {
			return err
		}

		rec := core.NewRecord(col)
		rec.Set("instance", p.InstanceID)
		rec.Set("name", p.Name)
		rec.Set("phone", p.Phone)
		rec.Set("email", p.Email)
		rec.Set("device", p.Device)

		if err := txApp.Save(rec); err != nil {
			return translateUnique(err, status.ErrDeviceRegistered)
		}

		*p = *participantFromRecord(rec)
		return nil
	})
}

// ---- waitlist ----

func entryFromRecord(r *core.Record) *models.WaitlistEntry {
	return &models.WaitlistEntry{
		ID:         r.Id,
		InstanceID: r.GetString("instance"),
		Singer:     r.GetString("singer"),
		Song:       r.GetString("song"),
		VideoRef:   r.GetString("video_ref"),
		Rotation:   r.GetInt("rotation"),
		Status:     r.GetString("status"),
		CreatedAt:  r.GetDateTime("created").Time(),
		UpdatedAt:  r.GetDateTime("updated").Time(),
	}
}

func (s *PB) EntryByID(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	rec, err := s.app.FindRecordById("waitlist", id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return entryFromRecord(rec), nil
}

func (s *PB) WaitingEntries(ctx context.Context, instanceID string) ([]*models.WaitlistEntry, error) {
	recs, err := s.app.FindRecordsByFilter(
		"waitlist",
		"instance = {:instance} && status = {:status}",
		"rotation,created",
		0, 0,
		dbx.Params{"instance": instanceID, "status": models.WaitlistStatusWaiting},
	)
	if err != nil {
		return nil, err
	}

	entries := make([]*models.WaitlistEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, entryFromRecord(rec))
	}
	return entries, nil
}

func (s *PB) SingingEntry(ctx context.Context, instanceID string) (*models.WaitlistEntry, error) {
	rec, err := s.app.FindFirstRecordByFilter(
		"waitlist",
		"instance = {:instance} && status = {:status}",
		dbx.Params{"instance": instanceID, "status": models.WaitlistStatusSinging},
	)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return entryFromRecord(rec), nil
}

func (s *PB) MaxRotation(ctx context.Context, instanceID, singer string) (int, bool, error) {
	recs, err := s.app.FindRecordsByFilter(
		"waitlist",
		"instance = {:instance}",
		"-rotation",
		0, 0,
		dbx.Params{"instance": instanceID},
	)
	if err != nil {
		return 0, false, err
	}

	// Name folding happens here rather than in SQL so the comparison
	// matches models.SingerKey exactly.
	key := models.SingerKey(singer)
	max, seen := 0, false
	for _, rec := range recs {
		if models.SingerKey(rec.GetString("singer")) != key {
			continue
		}
		if rot := rec.GetInt("rotation"); !seen || rot > max {
			max = rot
		}
		seen = true
	}
	return max, seen, nil
}

func (s *PB) CreateEntry(ctx context.Context, e *models.WaitlistEntry) error {
	col, err := s.app.FindCollectionByNameOrId("waitlist")
	if err != nil {
		return err
	}

	rec := core.NewRecord(col)
	rec.Set("instance", e.InstanceID)
	rec.Set("singer", e.Singer)
	rec.Set("song", e.Song)
	rec.Set("video_ref", e.VideoRef)
	rec.Set("rotation", e.Rotation)
	rec.Set("status", e.Status)

	if err := s.app.Save(rec); err != nil {
		return err
	}

	*e = *entryFromRecord(rec)
	return nil
}

func (s *PB) PromoteEntry(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	var out *models.WaitlistEntry
	err := s.app.RunInTransaction(func(txApp core.App) error {
		rec, err := txApp.FindRecordById("waitlist", id)
		if err != nil {
			return translateNotFound(err)
		}
		if rec.GetString("status") != models.WaitlistStatusWaiting {
			return status.ErrNotWaiting
		}

		_, err = txApp.FindFirstRecordByFilter(
			"waitlist",
			"instance = {:instance} && status = {:status} && id != {:id}",
			dbx.Params{
				"instance": rec.GetString("instance"),
				"status":   models.WaitlistStatusSinging,
				"id":       id,
			},
		)
		if err == nil {
			return status.ErrAlreadySinging
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		rec.Set("status", models.WaitlistStatusSinging)
		if err := txApp.Save(rec); err != nil {
			return err
		}
		out = entryFromRecord(rec)
		return nil
	})
	return out, err
}

func (s *PB) CompleteEntry(ctx context.Context, id string) (*models.WaitlistEntry, int, error) {
	var out *models.WaitlistEntry
	bumped := 0
	err := s.app.RunInTransaction(func(txApp core.App) error {
		rec, err := txApp.FindRecordById("waitlist", id)
		if err != nil {
			return translateNotFound(err)
		}
		switch rec.GetString("status") {
		case models.WaitlistStatusSinging:
		case models.WaitlistStatusDone:
			return status.ErrEntryDone
		default:
			return fmt.Errorf("%w: entry is not singing", status.ErrConflict)
		}

		rec.Set("status", models.WaitlistStatusDone)
		// The entry's own counter records the completed performance;
		// rotation is "times performed" and only ever grows.
		rec.Set("rotation", rec.GetInt("rotation")+1)
		if err := txApp.Save(rec); err != nil {
			return err
		}

		// Sibling bumps commit with the done transition so a failure
		// midway leaves the queue untouched and Complete retryable.
		siblings, err := txApp.FindRecordsByFilter(
			"waitlist",
			"instance = {:instance} && status = {:status} && id != {:id}",
			"",
			0, 0,
			dbx.Params{
				"instance": rec.GetString("instance"),
				"status":   models.WaitlistStatusWaiting,
				"id":       id,
			},
		)
		if err != nil {
			return err
		}

		key := models.SingerKey(rec.GetString("singer"))
		for _, sib := range siblings {
			if models.SingerKey(sib.GetString("singer")) != key {
				continue
			}
			sib.Set("rotation", sib.GetInt("rotation")+1)
			if err := txApp.Save(sib); err != nil {
				return err
			}
			bumped++
		}

		out = entryFromRecord(rec)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out, bumped, nil
}

func (s *PB) DeleteEntry(ctx context.Context, id string) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		rec, err := txApp.FindRecordById("waitlist", id)
		if err != nil {
			return translateNotFound(err)
		}
		if rec.GetString("status") == models.WaitlistStatusDone {
			return status.ErrEntryDone
		}
		return txApp.Delete(rec)
	})
}

// ---- performances and votes ----

func performanceFromRecord(r *core.Record) *models.Performance {
	return &models.Performance{
		ID:             r.Id,
		InstanceID:     r.GetString("instance"),
		EntryID:        r.GetString("entry"),
		Singer:         r.GetString("singer"),
		Song:           r.GetString("song"),
		VideoRef:       r.GetString("video_ref"),
		Status:         r.GetString("status"),
		AvgScore:       r.GetFloat("avg_score"),
		VoteCount:      r.GetInt("vote_count"),
		VideoChangedAt: r.GetDateTime("video_changed_at").Time(),
		CreatedAt:      r.GetDateTime("created").Time(),
		UpdatedAt:      r.GetDateTime("updated").Time(),
	}
}

func voteFromRecord(r *core.Record) *models.Vote {
	return &models.Vote{
		ID:            r.Id,
		PerformanceID: r.GetString("performance"),
		Device:        r.GetString("device"),
		Score:         r.GetInt("score"),
		CreatedAt:     r.GetDateTime("created").Time(),
	}
}

func (s *PB) PerformanceByID(ctx context.Context, id string) (*models.Performance, error) {
	rec, err := s.app.FindRecordById("performances", id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return performanceFromRecord(rec), nil
}

func (s *PB) ActivePerformance(ctx context.Context, instanceID string) (*models.Performance, error) {
	rec, err := s.app.FindFirstRecordByFilter(
		"performances",
		"instance = {:instance} && status = {:status}",
		dbx.Params{"instance": instanceID, "status": models.PerformanceStatusActive},
	)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return performanceFromRecord(rec), nil
}

func (s *PB) Performances(ctx context.Context, instanceID string, endedOnly bool) ([]*models.Performance, error) {
	filter := "instance = {:instance}"
	params := dbx.Params{"instance": instanceID}
	if endedOnly {
		filter += " && status = {:status}"
		params["status"] = models.PerformanceStatusEnded
	}

	recs, err := s.app.FindRecordsByFilter("performances", filter, "created", 0, 0, params)
	if err != nil {
		return nil, err
	}

	perfs := make([]*models.Performance, 0, len(recs))
	for _, rec := range recs {
		perfs = append(perfs, performanceFromRecord(rec))
	}
	return perfs, nil
}

func (s *PB) CreatePerformance(ctx context.Context, p *models.Performance) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		_, err := txApp.FindFirstRecordByFilter(
			"performances",
			"instance = {:instance} && status = {:status}",
			dbx.Params{"instance": p.InstanceID, "status": models.PerformanceStatusActive},
		)
		if err == nil {
			return status.ErrPerformanceActive
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		col, err := txApp.FindCollectionByNameOrId("performances")
		if err != nil {
			return err
		}

		rec := core.NewRecord(col)
		rec.Set("instance", p.InstanceID)
		rec.Set("entry", p.EntryID)
		rec.Set("singer", p.Singer)
		rec.Set("song", p.Song)
		rec.Set("video_ref", p.VideoRef)
		rec.Set("status", models.PerformanceStatusActive)
		rec.Set("avg_score", 0)
		rec.Set("vote_count", 0)

		if err := txApp.Save(rec); err != nil {
			return err
		}

		*p = *performanceFromRecord(rec)
		return nil
	})
}

func (s *PB) EndPerformance(ctx context.Context, id string) (*models.Performance, error) {
	var out *models.Performance
	err := s.app.RunInTransaction(func(txApp core.App) error {
		rec, err := txApp.FindRecordById("performances", id)
		if err != nil {
			return translateNotFound(err)
		}
		if rec.GetString("status") != models.PerformanceStatusActive {
			return status.ErrPerformanceEnded
		}

		rec.Set("status", models.PerformanceStatusEnded)
		if err := txApp.Save(rec); err != nil {
			return err
		}
		out = performanceFromRecord(rec)
		return nil
	})
	return out, err
}

func (s *PB) SetPerformanceVideo(ctx context.Context, id, videoRef string) (*models.Performance, error) {
	var out *models.Performance
	err := s.app.RunInTransaction(func(txApp core.App) error {
		rec, err := txApp.FindRecordById("performances", id)
		if err != nil {
			return translateNotFound(err)
		}
		if rec.GetString("status") != models.PerformanceStatusActive {
			return status.ErrPerformanceEnded
		}

		rec.Set("video_ref", videoRef)
		rec.Set("video_changed_at", types.NowDateTime())
		if err := txApp.Save(rec); err != nil {
			return err
		}
		out = performanceFromRecord(rec)
		return nil
	})
	return out, err
}

func (s *PB) CreateVote(ctx context.Context, v *models.Vote) (*models.Performance, error) {
	var out *models.Performance
	err := s.app.RunInTransaction(func(txApp core.App) error {
		perfRec, err := txApp.FindRecordById("performances", v.PerformanceID)
		if err != nil {
			return translateNotFound(err)
		}
		// The recheck runs inside the write transaction so a vote
		// racing the active->ended transition cannot slip through.
		if perfRec.GetString("status") != models.PerformanceStatusActive {
			return status.ErrPerformanceEnded
		}

		_, err = txApp.FindFirstRecordByFilter(
			"votes",
			"performance = {:performance} && device = {:device}",
			dbx.Params{"performance": v.PerformanceID, "device": v.Device},
		)
		if err == nil {
			return status.ErrAlreadyVoted
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		col, err := txApp.FindCollectionByNameOrId("votes")
		if err != nil {
			return err
		}

		rec := core.NewRecord(col)
		rec.Set("performance", v.PerformanceID)
		rec.Set("device", v.Device)
		rec.Set("score", v.Score)

		if err := txApp.Save(rec); err != nil {
			return translateUnique(err, status.ErrAlreadyVoted)
		}
		*v = *voteFromRecord(rec)

		// Aggregates are a pure derivation over the vote rows.
		voteRecs, err := txApp.FindRecordsByFilter(
			"votes",
			"performance = {:performance}",
			"",
			0, 0,
			dbx.Params{"performance": v.PerformanceID},
		)
		if err != nil {
			return err
		}

		scores := make([]int, 0, len(voteRecs))
		for _, vr := range voteRecs {
			scores = append(scores, vr.GetInt("score"))
		}

		perfRec.Set("avg_score", models.AverageScore(scores))
		perfRec.Set("vote_count", len(scores))
		if err := txApp.Save(perfRec); err != nil {
			return err
		}

		out = performanceFromRecord(perfRec)
		return nil
	})
	return out, err
}

func (s *PB) VotesFor(ctx context.Context, performanceID string) ([]*models.Vote, error) {
	recs, err := s.app.FindRecordsByFilter(
		"votes",
		"performance = {:performance}",
		"created",
		0, 0,
		dbx.Params{"performance": performanceID},
	)
	if err != nil {
		return nil, err
	}

	votes := make([]*models.Vote, 0, len(recs))
	for _, rec := range recs {
		votes = append(votes, voteFromRecord(rec))
	}
	return votes, nil
}
