package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/chainsafe/escrow-middleware/pkg/transfer"
)

// LogService decorates a Service with request-level logging. Claim tokens and
// signatures are never logged.
type LogService struct {
	next   Service
	logger *zap.Logger
}

// NewLogService wraps a service with logging.
func NewLogService(next Service, logger *zap.Logger) *LogService {
	return &LogService{next: next, logger: logger}
}

func (l *LogService) PrepareTransfer(ctx context.Context, senderIdentity string, req *transfer.PrepareRequest) (*transfer.PrepareResponse, error) {
	resp, err := l.next.PrepareTransfer(ctx, senderIdentity, req)
	if err != nil {
		l.logger.Warn("PrepareTransfer failed",
			zap.String("sender", senderIdentity),
			zap.Error(err),
		)
		return nil, err
	}
	l.logger.Debug("PrepareTransfer succeeded",
		zap.String("transfer_id", resp.TransferID),
	)
	return resp, nil
}

func (l *LogService) ConfirmDeposit(ctx context.Context, transferID, txRef string) error {
	err := l.next.ConfirmDeposit(ctx, transferID, txRef)
	if err != nil {
		l.logger.Warn("ConfirmDeposit failed",
			zap.String("transfer_id", transferID),
			zap.Error(err),
		)
		return err
	}
	l.logger.Debug("ConfirmDeposit succeeded",
		zap.String("transfer_id", transferID),
		zap.String("tx_ref", txRef),
	)
	return nil
}

func (l *LogService) Release(ctx context.Context, recipientIdentity string, req *transfer.ReleaseRequest) (*transfer.ReleaseResponse, error) {
	resp, err := l.next.Release(ctx, recipientIdentity, req)
	if err != nil {
		l.logger.Warn("Release failed",
			zap.String("transfer_id", req.TransferID),
			zap.Error(err),
		)
		return nil, err
	}
	l.logger.Debug("Release succeeded",
		zap.String("transfer_id", resp.TransferID),
		zap.Bool("already_claimed", resp.AlreadyClaimed),
	)
	return resp, nil
}

func (l *LogService) Refund(ctx context.Context, transferID string) (*transfer.RefundResponse, error) {
	resp, err := l.next.Refund(ctx, transferID)
	if err != nil {
		l.logger.Warn("Refund failed",
			zap.String("transfer_id", transferID),
			zap.Error(err),
		)
		return nil, err
	}
	l.logger.Debug("Refund succeeded",
		zap.String("transfer_id", resp.TransferID),
	)
	return resp, nil
}

func (l *LogService) SignAuthorization(ctx context.Context, recipientIdentity string, req *transfer.AuthorizationRequest) (*transfer.AuthorizationResponse, error) {
	resp, err := l.next.SignAuthorization(ctx, recipientIdentity, req)
	if err != nil {
		l.logger.Warn("SignAuthorization failed",
			zap.String("transfer_id", req.TransferID),
			zap.Error(err),
		)
		return nil, err
	}
	l.logger.Debug("SignAuthorization succeeded",
		zap.String("transfer_id", resp.TransferID),
		zap.Uint64("nonce", resp.Nonce),
	)
	return resp, nil
}

func (l *LogService) SetPaused(ctx context.Context, paused bool) error {
	err := l.next.SetPaused(ctx, paused)
	if err != nil {
		l.logger.Warn("SetPaused failed",
			zap.Bool("paused", paused),
			zap.Error(err),
		)
		return err
	}
	l.logger.Info("SetPaused succeeded", zap.Bool("paused", paused))
	return nil
}

func (l *LogService) GetTransfer(ctx context.Context, identity, transferID string) (*transfer.TransferView, error) {
	resp, err := l.next.GetTransfer(ctx, identity, transferID)
	if err != nil {
		l.logger.Debug("GetTransfer failed",
			zap.String("transfer_id", transferID),
			zap.Error(err),
		)
		return nil, err
	}
	return resp, nil
}

func (l *LogService) ListTransfers(ctx context.Context, identity string) ([]*transfer.TransferView, error) {
	resp, err := l.next.ListTransfers(ctx, identity)
	if err != nil {
		l.logger.Debug("ListTransfers failed", zap.Error(err))
		return nil, err
	}
	return resp, nil
}
