// Package claims moves reward records from pending to withdrawn once the payment
// executor confirms a payout.
package claims

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Layr-Labs/rewards-engine/pkg/metrics"
	"github.com/Layr-Labs/rewards-engine/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/rewards-engine/pkg/rewardRecords"
	"github.com/Layr-Labs/rewards-engine/pkg/validation"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrSettlementUnverified = errors.New("settlement reference could not be verified")
	ErrMixedOwnerBatch      = errors.New("batch contains rewards owned by different users")
)

// SettlementVerifier confirms that a settlement reference corresponds to a payout
// that actually happened.
type SettlementVerifier interface {
	VerifySettlement(ctx context.Context, reference string) error
}

type ClaimRequest struct {
	UserHandle     string
	RewardId       string
	TransactionRef string
	WalletAddress  string
	WalletCategory string
}

type BatchSettlement struct {
	RewardIds      []string
	TransactionRef string
	WalletAddress  string
	WalletCategory string
}

type BatchItemResult struct {
	RewardId string `json:"rewardId"`
	Settled  bool   `json:"settled"`
	Reason   string `json:"reason,omitempty"`
}

type BatchResult struct {
	TransactionRef string             `json:"transactionRef"`
	Settled        int                `json:"settled"`
	Amount         decimal.Decimal    `json:"amount"`
	Items          []*BatchItemResult `json:"items"`
}

type ClaimProcessorConfig struct {
	// AllowCrossUserBatch lets one settlement reference cover rewards of several users.
	AllowCrossUserBatch bool
}

type ClaimProcessor struct {
	config   *ClaimProcessorConfig
	records  *rewardRecords.RewardRecordStore
	verifier SettlementVerifier
	sink     *metrics.MetricsSink
	clock    clockwork.Clock
	logger   *zap.Logger
}

func NewClaimProcessor(
	cfg *ClaimProcessorConfig,
	records *rewardRecords.RewardRecordStore,
	verifier SettlementVerifier,
	sink *metrics.MetricsSink,
	clock clockwork.Clock,
	l *zap.Logger,
) *ClaimProcessor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if sink == nil {
		sink = metrics.NewNoopMetricsSink()
	}
	return &ClaimProcessor{
		config:   cfg,
		records:  records,
		verifier: verifier,
		sink:     sink,
		clock:    clock,
		logger:   l,
	}
}

func (cp *ClaimProcessor) reject(reason string) {
	cp.sink.Incr(metricsTypes.Metric_Incr_ClaimRejected, []metricsTypes.MetricsLabel{{Name: "reason", Value: reason}}, 1)
}

// verify checks that reference has not settled anything yet and that the payment
// executor vouches for it. The settlements row written with the withdrawal is what
// finally guarantees single use.
func (cp *ClaimProcessor) verify(ctx context.Context, reference string) error {
	existing, err := cp.records.GetSettlement(ctx, reference)
	if err != nil {
		return err
	}
	if existing != nil {
		cp.reject("reused")
		return fmt.Errorf("%w: '%s'", rewardRecords.ErrSettlementReused, reference)
	}
	if cp.verifier == nil {
		return nil
	}
	if err := cp.verifier.VerifySettlement(ctx, reference); err != nil {
		cp.reject("unverified")
		return fmt.Errorf("%w: %w", ErrSettlementUnverified, err)
	}
	return nil
}

// Claim withdraws a single reward on behalf of its owner. Claiming a reward that is
// already withdrawn fails with rewardRecords.ErrRewardNotPending, and a reference
// that already settled another claim fails with rewardRecords.ErrSettlementReused.
func (cp *ClaimProcessor) Claim(ctx context.Context, req *ClaimRequest) (*rewardRecords.RewardRecord, error) {
	if strings.TrimSpace(req.UserHandle) == "" {
		return nil, validation.New("userHandle", "is required")
	}
	if strings.TrimSpace(req.RewardId) == "" {
		return nil, validation.New("rewardId", "is required")
	}
	if strings.TrimSpace(req.TransactionRef) == "" {
		return nil, validation.New("transactionRef", "is required")
	}

	record, err := cp.records.GetRecord(ctx, req.RewardId)
	if err != nil {
		return nil, err
	}
	if record.UserHandle != req.UserHandle {
		cp.reject("not_owned")
		return nil, fmt.Errorf("%w: '%s'", rewardRecords.ErrRewardNotOwned, req.RewardId)
	}
	if record.Status != rewardRecords.ClaimStatus_Pending {
		cp.reject("not_pending")
		return nil, fmt.Errorf("%w: '%s' is %s", rewardRecords.ErrRewardNotPending, req.RewardId, record.Status)
	}

	// the record stays pending if the executor cannot vouch for the payout
	if err := cp.verify(ctx, req.TransactionRef); err != nil {
		return nil, err
	}

	settlement := &rewardRecords.Settlement{
		TransactionRef: req.TransactionRef,
		WalletAddress:  req.WalletAddress,
		WalletCategory: req.WalletCategory,
		SettledAt:      cp.clock.Now().UTC(),
	}
	err = cp.records.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := cp.records.MarkWithdrawn(tx, []string{req.RewardId}, req.UserHandle, settlement)
		if err != nil {
			return err
		}
		if updated != 1 {
			return fmt.Errorf("%w: '%s' was claimed concurrently", rewardRecords.ErrRewardNotPending, req.RewardId)
		}
		return cp.records.RecordSettlement(tx, settlement, req.UserHandle, 1, record.Amount)
	})
	if err != nil {
		switch {
		case errors.Is(err, rewardRecords.ErrRewardNotPending):
			cp.reject("not_pending")
		case errors.Is(err, rewardRecords.ErrSettlementReused):
			cp.reject("reused")
		}
		return nil, err
	}

	cp.sink.Incr(metricsTypes.Metric_Incr_ClaimSettled, []metricsTypes.MetricsLabel{{Name: "source", Value: string(record.Source)}}, 1)
	cp.logger.Sugar().Infow("Reward claimed",
		zap.String("rewardId", req.RewardId),
		zap.String("userHandle", req.UserHandle),
		zap.String("transactionRef", req.TransactionRef),
	)
	return cp.records.GetRecord(ctx, req.RewardId)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SettleBatch withdraws every pending reward in the batch under one settlement
// reference, in a single transaction. Ids that are missing or already withdrawn are
// reported per item and do not block the rest. A batch with nothing pending does not
// consume the reference.
func (cp *ClaimProcessor) SettleBatch(ctx context.Context, batch *BatchSettlement) (*BatchResult, error) {
	ids := dedupe(batch.RewardIds)
	if len(ids) == 0 {
		return nil, validation.New("rewardIds", "at least one reward id is required")
	}
	if strings.TrimSpace(batch.TransactionRef) == "" {
		return nil, validation.New("transactionRef", "is required")
	}
	if err := cp.verify(ctx, batch.TransactionRef); err != nil {
		return nil, err
	}

	settlement := &rewardRecords.Settlement{
		TransactionRef: batch.TransactionRef,
		WalletAddress:  batch.WalletAddress,
		WalletCategory: batch.WalletCategory,
		SettledAt:      cp.clock.Now().UTC(),
	}

	result := &BatchResult{
		TransactionRef: batch.TransactionRef,
		Amount:         decimal.Zero,
		Items:          make([]*BatchItemResult, 0, len(ids)),
	}
	err := cp.records.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := cp.records.LockRecords(tx, ids)
		if err != nil {
			return err
		}
		byId := make(map[string]*rewardRecords.RewardRecord, len(locked))
		for _, r := range locked {
			byId[r.Id] = r
		}

		pending := make([]string, 0, len(locked))
		owners := make(map[string]struct{})
		amount := decimal.Zero
		items := make([]*BatchItemResult, 0, len(ids))
		for _, id := range ids {
			r, ok := byId[id]
			switch {
			case !ok:
				items = append(items, &BatchItemResult{RewardId: id, Reason: rewardRecords.ErrRewardNotFound.Error()})
			case r.Status != rewardRecords.ClaimStatus_Pending:
				items = append(items, &BatchItemResult{RewardId: id, Reason: fmt.Sprintf("%s: already %s", rewardRecords.ErrRewardNotPending.Error(), r.Status)})
			default:
				pending = append(pending, id)
				owners[r.UserHandle] = struct{}{}
				amount = amount.Add(r.Amount)
				items = append(items, &BatchItemResult{RewardId: id, Settled: true})
			}
		}

		if len(owners) > 1 && !cp.config.AllowCrossUserBatch {
			handles := make([]string, 0, len(owners))
			for h := range owners {
				handles = append(handles, h)
			}
			sort.Strings(handles)
			return validation.Newf("rewardIds", "%s: %s", ErrMixedOwnerBatch.Error(), strings.Join(handles, ", "))
		}

		if len(pending) > 0 {
			updated, err := cp.records.MarkWithdrawn(tx, pending, "", settlement)
			if err != nil {
				return err
			}
			if updated != int64(len(pending)) {
				return fmt.Errorf("expected to settle %d rewards, settled %d", len(pending), updated)
			}
			owner := ""
			if len(owners) == 1 {
				for h := range owners {
					owner = h
				}
			}
			if err := cp.records.RecordSettlement(tx, settlement, owner, len(pending), amount); err != nil {
				return err
			}
		}

		result.Settled = len(pending)
		result.Amount = amount
		result.Items = items
		return nil
	})
	if err != nil {
		if errors.Is(err, rewardRecords.ErrSettlementReused) {
			cp.reject("reused")
		}
		return nil, err
	}

	cp.sink.Incr(metricsTypes.Metric_Incr_ClaimSettled, []metricsTypes.MetricsLabel{{Name: "source", Value: "batch"}}, float64(result.Settled))
	cp.logger.Sugar().Infow("Settled reward batch",
		zap.String("transactionRef", batch.TransactionRef),
		zap.Int("requested", len(ids)),
		zap.Int("settled", result.Settled),
		zap.String("amount", result.Amount.String()),
	)
	return result, nil
}
