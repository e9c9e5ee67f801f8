package policy

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/internal/domain/repositories"
)

// Checker is what pipeline components depend on
type Checker interface {
	Check(ctx context.Context, req Request) (Decision, error)
}

var _ Checker = (*Engine)(nil)

// Engine evaluates requests against the stored consent of each meeting
type Engine struct {
	consents repositories.ConsentRepository
	clock    clock.Clock
	logger   *zap.Logger
}

// NewEngine creates a policy engine
func NewEngine(consents repositories.ConsentRepository, clk clock.Clock, logger *zap.Logger) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{consents: consents, clock: clk, logger: logger}
}

// Check loads the meeting's consent and evaluates the request. Only lookup failures are errors.
func (e *Engine) Check(ctx context.Context, req Request) (Decision, error) {
	consent, err := e.consents.GetConsent(ctx, req.MeetingID)
	if err != nil {
		return Decision{}, fmt.Errorf("load consent for %s: %w", req.MeetingID, err)
	}

	decision := Evaluate(consent, req, e.clock.Now())
	if !decision.Allowed {
		e.logger.Info("🚫 Policy denied operation",
			zap.String("meeting_id", req.MeetingID),
			zap.String("data_class", string(req.DataClass)),
			zap.String("operation", string(req.Operation)),
			zap.String("reason", decision.Reason),
		)
	}
	return decision, nil
}

// Require is Check for fatal gates: a denial comes back as an ErrPolicyDenied error
func Require(ctx context.Context, c Checker, req Request) error {
	decision, err := c.Check(ctx, req)
	if err != nil {
		return err
	}
	return decision.Err()
}
