package inventory

import (
	"context"
	"fmt"

	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DriftAlert is what a notifier receives for a drifting SKU
type DriftAlert struct {
	Sku        string `json:"sku"`
	Warehouse  string `json:"warehouse"`
	Date       string `json:"date"`
	Reported   int    `json:"reported"`
	Computed   int    `json:"computed"`
	Difference int    `json:"difference"`
	AlertType  string `json:"alert_type"` // "over_reported", "under_reported"
}

// DriftNotifier sends drift alerts to whoever reconciles stock
type DriftNotifier interface {
	SendDriftAlert(ctx context.Context, alert DriftAlert) error
}

// DriftDetectedHandler turns DriftDetected events into alerts
type DriftDetectedHandler struct {
	logger   *zap.Logger
	notifier DriftNotifier
}

// NewDriftDetectedHandler creates a new handler for drift events
func NewDriftDetectedHandler(logger *zap.Logger) *DriftDetectedHandler {
	return &DriftDetectedHandler{
		logger: logger,
	}
}

// WithNotifier sets the notifier for sending alerts
func (h *DriftDetectedHandler) WithNotifier(notifier DriftNotifier) *DriftDetectedHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *DriftDetectedHandler) EventTypes() []string {
	return []string{inventory.EventTypeDriftDetected}
}

// Handle processes a DriftDetectedEvent
func (h *DriftDetectedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	driftEvent, ok := event.(*inventory.DriftDetectedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", inventory.EventTypeDriftDetected),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			inventory.EventTypeDriftDetected, event.EventType())
	}

	drift := driftEvent.Drift
	alertType := "over_reported"
	if drift.Difference < 0 {
		alertType = "under_reported"
	}
	alert := DriftAlert{
		Sku:        drift.Sku,
		Warehouse:  drift.Warehouse,
		Date:       drift.Date.Format("2006-01-02"),
		Reported:   drift.Reported,
		Computed:   drift.Computed,
		Difference: drift.Difference,
		AlertType:  alertType,
	}

	if h.notifier == nil {
		return nil
	}
	if err := h.notifier.SendDriftAlert(ctx, alert); err != nil {
		// notification failure must not fail event handling
		h.logger.Error("failed to send drift alert",
			zap.String("sku", alert.Sku),
			zap.Error(err),
		)
	}
	return nil
}

var _ shared.EventHandler = (*DriftDetectedHandler)(nil)

// LoggingDriftNotifier logs drift alerts
type LoggingDriftNotifier struct {
	logger *zap.Logger
}

// NewLoggingDriftNotifier creates a new logging notifier
func NewLoggingDriftNotifier(logger *zap.Logger) *LoggingDriftNotifier {
	return &LoggingDriftNotifier{
		logger: logger,
	}
}

// SendDriftAlert logs the drift alert
func (n *LoggingDriftNotifier) SendDriftAlert(_ context.Context, alert DriftAlert) error {
	n.logger.Warn("STOCK DRIFT",
		zap.String("type", alert.AlertType),
		zap.String("sku", alert.Sku),
		zap.String("warehouse", alert.Warehouse),
		zap.Int("reported", alert.Reported),
		zap.Int("computed", alert.Computed),
	)
	return nil
}
