// dance-battle-system/services/scheduler.go
package services

import (
	"context"
	"errors"
	"time"

	"dance-battle-system/models"
	"dance-battle-system/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// TallyScheduler closes battles whose voting window has elapsed. Regular
// battles close a fixed duration after the verified reply; live events close
// once no vote has landed for the inactivity span. Closure itself is a CAS in
// BattleService, so extra workers are harmless.
type TallyScheduler struct {
	DB      *gorm.DB
	Battles *BattleService
	Clock   clockwork.Clock
	Config  EngineConfig

	sched gocron.Scheduler
}

func NewTallyScheduler(db *gorm.DB, battles *BattleService, clock clockwork.Clock, cfg EngineConfig) *TallyScheduler {
	return &TallyScheduler{
		DB:      db,
		Battles: battles,
		Clock:   clock,
		Config:  cfg,
	}
}

// Start launches the periodic tally job.
func (s *TallyScheduler) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.Clock))
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.Config.TallyTickInterval),
		gocron.NewTask(s.RunTallyPass),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	sched.Start()
	s.sched = sched
	utils.Info("tally scheduler started", "interval", s.Config.TallyTickInterval)
	return nil
}

// Stop shuts the scheduler down and waits for a running pass to finish.
func (s *TallyScheduler) Stop() {
	if s.sched != nil {
		_ = s.sched.Shutdown()
	}
}

// RunTallyPass executes one tick: gather due battles, tally and close each.
// A failure on one battle is logged and never aborts the rest of the pass.
func (s *TallyScheduler) RunTallyPass() {
	now := s.Clock.Now().Unix()

	var due []models.Match
	err := s.DB.Model(&models.Match{}).
		Where("closed = ? AND is_live = ? AND a_verified = ? AND b_verified = ?", false, false, true, true).
		Where("reply_timestamp > 0 AND reply_timestamp + voting_duration_hours * 3600 <= ?", now).
		Find(&due).Error
	if err != nil {
		utils.Error("tally pass: failed to select due battles", "err", err)
		return
	}

	var liveDue []models.Match
	err = s.DB.Model(&models.Match{}).
		Where("closed = ? AND is_live = ?", false, true).
		Where("last_updated_timestamp + ? <= ?", int64(s.Config.LiveInactivityClose.Seconds()), now).
		Find(&liveDue).Error
	if err != nil {
		utils.Error("tally pass: failed to select due live events", "err", err)
		return
	}

	for i := range due {
		s.closeOne(&due[i])
	}
	for i := range liveDue {
		s.closeOne(&liveDue[i])
	}
}

func (s *TallyScheduler) closeOne(match *models.Match) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var votes []models.Vote
	err := s.DB.WithContext(ctx).
		Where("match_id = ? AND kind <> ?", match.MatchID, models.VoteUnofficial).
		Find(&votes).Error
	if err != nil {
		utils.Error("tally pass: failed to load votes", "match_id", match.MatchID, "err", err)
		return
	}

	out := Tally(votes, s.Config)
	if err := s.Battles.CloseWithOutcome(ctx, match.MatchID, out); err != nil {
		// ErrWrongState here just means another worker got there first
		if !errors.Is(err, ErrWrongState) {
			utils.Error("tally pass: failed to close battle", "match_id", match.MatchID, "err", err)
		}
	}
}
