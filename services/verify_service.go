// services/verify_service.go
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
	"github.com/jrkim3888/airplane-ticket-price-tracker/scraper"
)

type VerifyOutcome int

const (
	// OutcomeNoData means the route has no record to verify.
	OutcomeNoData VerifyOutcome = iota
	// OutcomeUnconfirmed means the page could not be read; the stored record
	// is reported unchanged.
	OutcomeUnconfirmed
	OutcomeConfirmed
	OutcomeDropped
	OutcomeRisen
)

func (o VerifyOutcome) String() string {
	switch o {
	case OutcomeNoData:
		return "no_data"
	case OutcomeUnconfirmed:
		return "unconfirmed"
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeDropped:
		return "dropped"
	case OutcomeRisen:
		return "risen"
	}
	return fmt.Sprintf("VerifyOutcome(%d)", int(o))
}

func (o VerifyOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// VerifyResult is the verified best window of one route. Record is the
// record as stored after verification, nil for OutcomeNoData.
type VerifyResult struct {
	Route    models.Route               `json:"route"`
	Record   *models.WeeklyLowestRecord `json:"record"`
	Outcome  VerifyOutcome              `json:"outcome"`
	OldPrice int                        `json:"old_price,omitempty"`
	NewPrice int                        `json:"new_price,omitempty"`
}

type VerifyStore interface {
	LowestRecord(ctx context.Context, routeID int) (*models.WeeklyLowestRecord, error)
}

type VerifierOptions struct {
	URLTemplate       string
	DesignatedCarrier string
}

// Verifier re-checks the cheapest recorded window of each route with a
// single render. It never deletes records.
type Verifier struct {
	renderer scraper.Renderer
	ledger   *Ledger
	store    VerifyStore
	pacer    Pacer
	opts     VerifierOptions
}

func NewVerifier(renderer scraper.Renderer, ledger *Ledger, store VerifyStore, pacer Pacer, opts VerifierOptions) *Verifier {
	if pacer == nil {
		pacer = NoPacer{}
	}
	return &Verifier{renderer: renderer, ledger: ledger, store: store, pacer: pacer, opts: opts}
}

// VerifyAll verifies routes in order. A store error aborts; render problems
// only mark the route unconfirmed.
func (v *Verifier) VerifyAll(ctx context.Context, routes []models.Route) ([]VerifyResult, error) {
	results := make([]VerifyResult, 0, len(routes))
	for i, route := range routes {
		if i > 0 {
			if err := v.pacer.Pause(ctx); err != nil {
				return results, err
			}
		}
		res, err := v.VerifyRoute(ctx, route)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (v *Verifier) VerifyRoute(ctx context.Context, route models.Route) (VerifyResult, error) {
	stored, err := v.store.LowestRecord(ctx, route.ID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("load best record of %s: %w", route, err)
	}
	if stored == nil {
		return VerifyResult{Route: route, Outcome: OutcomeNoData}, nil
	}

	key := stored.Key()
	unconfirmed := VerifyResult{Route: route, Record: stored, Outcome: OutcomeUnconfirmed, OldPrice: stored.MinPrice}
	pageURL := scraper.BuildSearchURL(v.opts.URLTemplate, route, stored.Window, 1)
	slog.InfoContext(ctx, "Service: verifying best window", "key", key.String(), "price", stored.MinPrice)

	text, err := v.renderer.Render(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return VerifyResult{}, ctx.Err()
		}
		slog.WarnContext(ctx, "Service: verification render failed", "key", key.String(), "err", err)
		return unconfirmed, nil
	}
	obs := scraper.Observe(scraper.Extract(text, scraper.ParamsForRoute(route)), v.opts.DesignatedCarrier)
	if obs == nil {
		slog.WarnContext(ctx, "Service: verification found no offer", "key", key.String())
		return unconfirmed, nil
	}

	record, ev, err := v.ledger.Reconcile(ctx, key, obs)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("reconcile %s: %w", key, err)
	}
	if record == nil {
		// removed by a concurrent scan between read and reconcile
		return VerifyResult{Route: route, Outcome: OutcomeNoData}, nil
	}

	res := VerifyResult{Route: route, Record: record, OldPrice: stored.MinPrice, NewPrice: obs.Best.Price}
	switch ev.Kind {
	case models.EventPriceDrop:
		res.Outcome = OutcomeDropped
	case models.EventPriceRise:
		res.Outcome = OutcomeRisen
	default:
		res.Outcome = OutcomeConfirmed
	}
	slog.InfoContext(ctx, "Service: verification finished", "key", key.String(), "outcome", res.Outcome.String(),
		"old_price", res.OldPrice, "new_price", res.NewPrice)
	return res, nil
}
