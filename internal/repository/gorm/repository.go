package gormrepository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"suiwager/internal/models"
	"suiwager/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateBet(ctx context.Context, bet *models.Bet) error {
	if s == nil || s.db == nil || bet == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(bet).Error
}

func (s *Store) GetBet(ctx context.Context, id uint64) (*models.Bet, error) {
	if s == nil || s.db == nil {
		return nil, repository.ErrNotFound
	}
	var bet models.Bet
	err := s.db.WithContext(ctx).First(&bet, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bet, nil
}

func (s *Store) ListPending(ctx context.Context, params repository.ListPendingParams) ([]models.Bet, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.Bet{}).
		Where("status = ?", string(models.BetPending))
	if params.Currency != nil {
		query = query.Where("currency = ?", string(*params.Currency))
	}
	limit := params.Limit
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	var bets []models.Bet
	if err := query.Order("created_at asc").Limit(limit).Offset(offset).Find(&bets).Error; err != nil {
		return nil, err
	}
	return bets, nil
}

func (s *Store) UpdateBetStatus(ctx context.Context, id uint64, update repository.BetStatusUpdate) error {
	if s == nil || s.db == nil {
		return nil
	}
	values := map[string]any{
		"status": string(update.Status),
	}
	if update.SettledAt != nil {
		values["settled_at"] = *update.SettledAt
	}
	if update.TxRef != nil {
		values["chain_tx_ref"] = *update.TxRef
	}
	if update.SettlementPath != "" {
		values["settlement_path"] = update.SettlementPath
	}
	if update.AuditNote != nil {
		values["audit_note"] = update.AuditNote
	}
	res := s.db.WithContext(ctx).
		Model(&models.Bet{}).
		Where("id = ?", id).
		Where("status = ?", string(models.BetPending)).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrStaleStatus
	}
	return nil
}

func (s *Store) SetBetObjectRef(ctx context.Context, id uint64, objectRef, txRef string) error {
	if s == nil || s.db == nil {
		return nil
	}
	values := map[string]any{}
	if objectRef != "" {
		values["chain_object_ref"] = objectRef
	}
	if txRef != "" {
		values["chain_tx_ref"] = txRef
	}
	if len(values) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Bet{}).
		Where("id = ?", id).
		Updates(values).Error
}

func (s *Store) AttachSettlementTransfer(ctx context.Context, id uint64, txRef string, note datatypes.JSON) error {
	if s == nil || s.db == nil {
		return nil
	}
	values := map[string]any{
		"chain_tx_ref": txRef,
	}
	if note != nil {
		values["audit_note"] = note
	}
	return s.db.WithContext(ctx).
		Model(&models.Bet{}).
		Where("id = ?", id).
		Updates(values).Error
}

func (s *Store) SumPendingPayout(ctx context.Context, currency models.Currency, onChainOnly bool) (decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.Bet{}).
		Where("status = ?", string(models.BetPending)).
		Where("currency = ?", string(currency))
	if onChainOnly {
		query = query.Where("chain_object_ref IS NOT NULL AND chain_object_ref <> ''")
	}
	var total decimal.NullDecimal
	if err := query.Select("COALESCE(SUM(potential_payout), 0)").Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (s *Store) InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if s == nil || s.db == nil || entry == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *Store) InsertFeeWithdrawal(ctx context.Context, withdrawal *models.FeeWithdrawal) error {
	if s == nil || s.db == nil || withdrawal == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(withdrawal).Error
}

func (s *Store) ListFeeWithdrawals(ctx context.Context, currency *models.Currency, limit int) ([]models.FeeWithdrawal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.FeeWithdrawal{})
	if currency != nil {
		query = query.Where("currency = ?", string(*currency))
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []models.FeeWithdrawal
	if err := query.Order("created_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
