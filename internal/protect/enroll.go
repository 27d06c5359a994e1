package protect

import (
	"context"
)

// Enroll submits the selected applicants and returns the generated quotes.
// The host loading indicator stays up for the whole exchange.
func (s *Service) Enroll(ctx context.Context, applicants []Applicant) (Quotes, error) {
	host := s.host()

	if err := host.ShowLoading(ctx); err != nil {
		s.logger.Debug("show loading failed", "err", err)
	}
	defer func() {
		if err := host.HideLoading(context.WithoutCancel(ctx)); err != nil {
			s.logger.Debug("hide loading failed", "err", err)
		}
	}()

	user, err := host.GetUser(ctx)
	if err != nil {
		s.logger.Error("failed to get user email", "err", err)
		return Quotes{}, userError("user", MsgUserEmail, err)
	}

	app, err := s.api.CreateApplication(ctx, user.Email)
	if err != nil {
		return Quotes{}, err
	}
	if _, err := s.api.UpdateApplication(ctx, app.ID, applicants); err != nil {
		return Quotes{}, err
	}
	sub, err := s.api.CreateSubmission(ctx, app.ID)
	if err != nil {
		return Quotes{}, err
	}
	quotes, err := s.api.GenerateQuotes(ctx, sub.ID)
	if err != nil {
		return Quotes{}, err
	}

	s.logger.Info("quotes generated", "application", app.ID, "submission", sub.ID, "quotes", len(quotes.Quotes))
	return quotes, nil
}
