package protect

import (
	"context"
	"time"

	"github.com/arko-chat/protect/internal/bridge"
)

// Applicants is the application form state: one applicant per beep card,
// keyed by card number.
type Applicants struct {
	User     bridge.User
	Cards    []bridge.Card
	Selected map[string]bool
	Forms    map[string]*Applicant
}

// LoadApplicants fetches the user and their cards. The first card starts
// selected and prefilled with the user's own details.
func (s *Service) LoadApplicants(ctx context.Context) (*Applicants, error) {
	host := s.host()

	user, err := host.GetUser(ctx)
	if err != nil {
		s.logger.Error("failed to fetch user", "err", err)
		return nil, userError("user", MsgUserData, err)
	}

	list, err := host.GetCards(ctx)
	if err != nil {
		s.logger.Error("failed to fetch cards", "err", err)
		return nil, userError("cards", MsgCards, err)
	}
	if len(list.Cards) == 0 {
		return nil, userError("cards", MsgNoCards, ErrNoCards)
	}

	a := &Applicants{
		User:     user,
		Cards:    list.Cards,
		Selected: make(map[string]bool, len(list.Cards)),
		Forms:    make(map[string]*Applicant, len(list.Cards)),
	}
	for _, c := range list.Cards {
		a.Forms[c.CAN] = &Applicant{CardNumber: c.CAN}
	}

	first := a.Forms[list.Cards[0].CAN]
	first.FirstName = user.FirstName
	first.LastName = user.LastName
	first.Mobile = user.PhoneNumber
	first.Email = user.Email
	a.Selected[list.Cards[0].CAN] = true

	return a, nil
}

func (a *Applicants) Toggle(can string) {
	a.Selected[can] = !a.Selected[can]
}

// Details returns the selected applicants in card order.
func (a *Applicants) Details() []Applicant {
	var out []Applicant
	for _, c := range a.Cards {
		if a.Selected[c.CAN] {
			if f, ok := a.Forms[c.CAN]; ok {
				out = append(out, *f)
			}
		}
	}
	return out
}

// Valid reports whether at least one card is selected and every selected
// card has a complete applicant.
func (a *Applicants) Valid() bool {
	details := a.Details()
	if len(details) == 0 {
		return false
	}
	for _, d := range details {
		if !d.Complete() {
			return false
		}
	}
	return true
}

// PickBirthDate asks the host for the applicant's date of birth and stores
// it on the card's form.
func (s *Service) PickBirthDate(ctx context.Context, a *Applicants, can string) (string, error) {
	form, ok := a.Forms[can]
	if !ok {
		return "", ErrUnknownCard
	}

	picked, err := s.host().DatePicker(ctx, bridge.DatePickerRequest{
		Format:      BirthDateFormat,
		MinimumDate: MinimumBirthDate,
		MaximumDate: s.opts.Now().UTC().Format(time.DateOnly),
	})
	if err != nil {
		s.logger.Error("failed to select date", "card", can, "err", err)
		return "", err
	}

	form.BirthDate = picked.Date
	return picked.Date, nil
}
