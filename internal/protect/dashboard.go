package protect

import (
	"context"
	"strings"

	"github.com/tidwall/btree"

	"github.com/arko-chat/protect/internal/bridge"
)

// COC is a certificate of coverage for one card.
type COC struct {
	Number      string
	Period      string
	DownloadURL string
	PolicyID    string
}

type InsuredCard struct {
	CardNumber    string
	RawCardNumber string
	InsuredName   string
	COCs          []COC
}

type Dashboard struct {
	User  bridge.User
	Cards []InsuredCard
}

func byRawCardNumber(a, b *InsuredCard) bool {
	return a.RawCardNumber < b.RawCardNumber
}

// Dashboard lists the user's insured cards, each with its certificates.
// Policy lookups per user are cached and shared between concurrent callers.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	host := s.host()
	host.AppBarTitle(ctx, DashboardTitle)

	user, err := host.GetUser(ctx)
	if err != nil {
		s.logger.Error("failed to get user data", "err", err)
		return Dashboard{}, userError("user", MsgDashboardUser, err)
	}

	policies, err := s.Policies(ctx, user.Email)
	if err != nil {
		s.logger.Error("failed to fetch policies", "err", err)
		return Dashboard{User: user}, userError("policies", MsgPolicies, err)
	}

	return Dashboard{User: user, Cards: GroupPolicies(policies)}, nil
}

// Policies returns the policies issued to email.
func (s *Service) Policies(ctx context.Context, email string) ([]Policy, error) {
	bg := context.WithoutCancel(ctx)
	return s.policies.Get(email, func() ([]Policy, error) {
		return s.api.GetPolicies(bg, email)
	})
}

// RefreshPolicies drops the cached policies of email, e.g. after binding a
// new quote.
func (s *Service) RefreshPolicies(email string) {
	s.policies.Invalidate(email)
}

// GroupPolicies turns policies into insured cards ordered by card number.
// Cards without a number are skipped.
func GroupPolicies(policies []Policy) []InsuredCard {
	tree := btree.NewBTreeG(byRawCardNumber)

	for _, p := range policies {
		var download string
		if len(p.Documents) > 0 {
			download = p.Documents[0].DownloadURL
		}
		coc := COC{
			Number:      p.PolicyNumber,
			Period:      FormatPeriod(p.StartDate, p.EndDate),
			DownloadURL: download,
			PolicyID:    string(p.ID),
		}

		for _, c := range p.QuoteData.Data.BeepCards {
			number := strings.TrimSpace(string(c.CardNumber))
			if number == "" {
				continue
			}

			if card, ok := tree.Get(&InsuredCard{RawCardNumber: number}); ok {
				card.COCs = append(card.COCs, coc)
				continue
			}
			tree.Set(&InsuredCard{
				CardNumber:    FormatCardNumber(number),
				RawCardNumber: number,
				InsuredName:   InsuredName(c.FirstName, c.LastName),
				COCs:          []COC{coc},
			})
		}
	}

	out := make([]InsuredCard, 0, tree.Len())
	tree.Scan(func(c *InsuredCard) bool {
		out = append(out, *c)
		return true
	})
	return out
}
