package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mbd888/churnwatch/internal/churn"
	"github.com/mbd888/churnwatch/internal/logging"
	"github.com/mbd888/churnwatch/internal/traces"
	"github.com/mbd888/churnwatch/internal/users"
	"github.com/mbd888/churnwatch/internal/validation"
)

// Listing limits.
const (
	DefaultAtRiskLimit = 50
	MaxAtRiskLimit     = 500
)

// AtRiskCustomer is one high-tier customer with display details.
type AtRiskCustomer struct {
	Key                   string         `json:"key"`
	UserID                string         `json:"userId,omitempty"`
	Name                  string         `json:"name"`
	Email                 string         `json:"email"`
	ChurnProbability      float64        `json:"churnProbability"`
	RiskLevel             churn.RiskTier `json:"riskLevel"`
	Segment               churn.Segment  `json:"segment"`
	TotalSpentUSD         float64        `json:"totalSpentUsd"`
	DaysSinceLastActivity int            `json:"daysSinceLastActivity"`
	LastActivity          time.Time      `json:"lastActivity"`
	TopRiskFactors        []string       `json:"topRiskFactors"`
	RecommendedActions    []string       `json:"recommendedActions"`
}

// AtRiskList is the response of ListAtRisk.
type AtRiskList struct {
	WeekEnding    string            `json:"weekEnding"`
	Customers     []*AtRiskCustomer `json:"customers"`
	Total         int               `json:"total"` // before limit
	TotalRevenue  float64           `json:"totalRevenue"`
	RevenueAtRisk float64           `json:"revenueAtRisk"`
	ModelVersion  string            `json:"modelVersion"`
}

// ListAtRisk returns the week's high-tier customers, most likely to churn
// first. Only the current window is scored; no narrative is requested.
func (s *Service) ListAtRisk(ctx context.Context, clientID string, weekEnding time.Time, limit int) (*AtRiskList, error) {
	ctx = logging.WithClientID(ctx, clientID)
	ctx, span := traces.StartSpan(ctx, "report.at_risk", traces.ClientID(clientID), traces.WeekEnding(weekEnding))
	defer span.End()

	if limit <= 0 {
		limit = DefaultAtRiskLimit
	}
	if limit > MaxAtRiskLimit {
		limit = MaxAtRiskLimit
	}

	now := s.now()
	if err := s.validate(clientID, weekEnding, now); err != nil {
		return nil, err
	}

	window := WeekWindow(weekEnding)
	res, err := s.scoreWindow(ctx, clientID, window, now, "current")
	if err != nil {
		traces.Fail(span, err)
		return nil, err
	}

	list := &AtRiskList{
		WeekEnding:   window.WeekEnding().Format(validation.DateLayout),
		Customers:    []*AtRiskCustomer{},
		ModelVersion: s.scorer.ModelVersion(),
	}

	var high []*churn.ScoredCustomer
	for _, c := range res.customers {
		list.TotalRevenue += c.Features.TotalSpentUSD
		if c.Tier == churn.TierHigh {
			high = append(high, c)
			list.RevenueAtRisk += c.Features.TotalSpentUSD
		}
	}
	list.TotalRevenue = churn.Round(list.TotalRevenue, 2)
	list.RevenueAtRisk = churn.Round(list.RevenueAtRisk, 2)
	list.Total = len(high)

	sort.SliceStable(high, func(i, j int) bool {
		if high[i].Probability != high[j].Probability {
			return high[i].Probability > high[j].Probability
		}
		return high[i].Key < high[j].Key
	})
	if len(high) > limit {
		high = high[:limit]
	}

	directory, err := s.lookup(ctx, clientID, high)
	if err != nil {
		traces.Fail(span, err)
		return nil, err
	}

	for _, c := range high {
		u := directory[c.UserID]
		fallback := c.UserID
		if fallback == "" {
			fallback = c.Email
		}
		emailFallback := fallback
		if c.Email != "" {
			emailFallback = c.Email
		}
		list.Customers = append(list.Customers, &AtRiskCustomer{
			Key:                   c.Key,
			UserID:                c.UserID,
			Name:                  users.DisplayName(u, fallback),
			Email:                 users.DisplayEmail(u, emailFallback),
			ChurnProbability:      churn.Round(c.Probability, 4),
			RiskLevel:             c.Tier,
			Segment:               c.Segment,
			TotalSpentUSD:         churn.Round(c.Features.TotalSpentUSD, 2),
			DaysSinceLastActivity: c.Features.DaysSinceLastActivity,
			LastActivity:          c.LastActivity,
			TopRiskFactors:        c.RiskFactors,
			RecommendedActions:    c.Actions,
		})
	}
	return list, nil
}

func (s *Service) lookup(ctx context.Context, clientID string, customers []*churn.ScoredCustomer) (map[string]*users.User, error) {
	ids := make([]string, 0, len(customers))
	for _, c := range customers {
		if c.UserID != "" {
			ids = append(ids, c.UserID)
		}
	}
	if len(ids) == 0 || s.users == nil {
		return map[string]*users.User{}, nil
	}
	found, err := s.users.Lookup(ctx, clientID, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: user lookup: %w", ErrDataUnavailable, err)
	}
	return found, nil
}
