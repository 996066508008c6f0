// services/briefing.go
package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jrkim3888/airplane-ticket-price-tracker/chrono"
	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
	"github.com/jrkim3888/airplane-ticket-price-tracker/notifier"
	"github.com/jrkim3888/airplane-ticket-price-tracker/scraper"
	"github.com/jrkim3888/airplane-ticket-price-tracker/utils"
)

const briefingRule = "━━━━━━━━━━━━━━━━━━━━"

type BriefingOptions struct {
	Hours             []int
	URLTemplate       string
	DesignatedCarrier string
}

// BuildBriefing renders the periodic summary of verified best windows.
func BuildBriefing(now time.Time, results []VerifyResult, opts BriefingOptions) string {
	lines := []string{
		fmt.Sprintf("✈️ 항공권 가격 브리핑 | %s", now.Format("2006-01-02 15:04 MST")),
		"",
	}

	for _, res := range results {
		route := res.Route
		lines = append(lines,
			fmt.Sprintf("📍 %s → %s (직항)", utils.AirportName(route.Origin), route.Label),
			briefingRule,
		)
		if warning := verifyWarning(res); warning != "" {
			lines = append(lines, warning)
		}

		rec := res.Record
		if rec == nil {
			lines = append(lines, "   데이터 없음 (스캔 대기 중)", "")
			continue
		}

		dates := fmt.Sprintf("%s → %s", utils.ShortDateLabel(rec.Window.Depart), utils.ShortDateLabel(rec.Window.Return))
		out, ret := notifier.SplitLegs(rec.Legs)
		lines = append(lines,
			fmt.Sprintf("🏆 최저가: %s | %s", dates, rec.Airline),
			"   ↗ 가는편: "+out,
			"   ↙ 오는편: "+ret,
			"   💰 왕복 "+utils.FormatWon(rec.MinPrice),
			fmt.Sprintf("   🔗 <%s>", scraper.BuildSearchURL(opts.URLTemplate, route, rec.Window, 1)),
			"",
		)

		if rec.DesignatedPrice != nil && rec.DesignatedLegs != nil {
			dOut, dRet := notifier.SplitLegs(*rec.DesignatedLegs)
			lines = append(lines,
				fmt.Sprintf("🇰🇷 %s: %s", opts.DesignatedCarrier, dates),
				"   ↗ 가는편: "+dOut,
				"   ↙ 오는편: "+dRet,
				"   💰 왕복 "+utils.FormatWon(*rec.DesignatedPrice),
			)
		} else {
			lines = append(lines, fmt.Sprintf("🇰🇷 %s: 해당 시간대 운항 없음", opts.DesignatedCarrier))
		}
		lines = append(lines, "")
	}

	if next, ok := NextBriefingHour(now.Hour(), opts.Hours); ok {
		lines = append(lines, fmt.Sprintf("📊 다음 브리핑: %02d:00 %s", next, now.Format("MST")))
	}
	return strings.Join(lines, "\n")
}

func verifyWarning(res VerifyResult) string {
	switch res.Outcome {
	case OutcomeUnconfirmed:
		return fmt.Sprintf("⚠️ %s 출발 실시간 확인 불가 (DB 기준 가격 표시)", utils.ShortDateLabel(res.Record.Window.Depart))
	case OutcomeDropped:
		return fmt.Sprintf("✨ 가격 인하! %s → %s", utils.FormatWon(res.OldPrice), utils.FormatWon(res.NewPrice))
	case OutcomeRisen:
		return fmt.Sprintf("⚠️ 이전 최저가 소멸 (%s) → 현재: %s", utils.FormatWon(res.OldPrice), utils.FormatWon(res.NewPrice))
	}
	return ""
}

// NextBriefingHour returns the first configured hour after nowHour, wrapping
// to the earliest hour of the next day.
func NextBriefingHour(nowHour int, hours []int) (int, bool) {
	if len(hours) == 0 {
		return 0, false
	}
	sorted := slices.Clone(hours)
	slices.Sort(sorted)
	for _, h := range sorted {
		if h > nowHour {
			return h, true
		}
	}
	return sorted[0], true
}

// Briefer verifies every route and sends the briefing.
type Briefer struct {
	verifier *Verifier
	notifier notifier.Notifier
	clock    chrono.Clock
	opts     BriefingOptions
}

func NewBriefer(verifier *Verifier, n notifier.Notifier, clock chrono.Clock, opts BriefingOptions) *Briefer {
	if n == nil {
		n = notifier.LogNotifier{}
	}
	return &Briefer{verifier: verifier, notifier: n, clock: clock, opts: opts}
}

// Run returns the message that was sent. Delivery failures are logged only.
func (b *Briefer) Run(ctx context.Context, routes []models.Route) (string, []VerifyResult, error) {
	results, err := b.verifier.VerifyAll(ctx, routes)
	if err != nil {
		return "", results, err
	}
	msg := BuildBriefing(b.clock.Now(), results, b.opts)
	notifier.Deliver(ctx, b.notifier, msg)
	return msg, results, nil
}
