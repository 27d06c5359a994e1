// Command protect drives the mini app flows against the host picked by the
// environment: a remote host server when PROTECT_HOST_URL is set, the
// simulator otherwise.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arko-chat/protect/internal/bridge"
	"github.com/arko-chat/protect/internal/config"
	"github.com/arko-chat/protect/internal/logger"
	"github.com/arko-chat/protect/internal/protect"
	"github.com/arko-chat/protect/internal/sdk"
	"github.com/arko-chat/protect/internal/wsrpc"
)

func main() {
	full := flag.Bool("full", false, "also enroll, pay and list policies against the insurance API")
	amount := flag.Float64("amount", 150, "amount to pay in the purchase scenario")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{}).Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slogger := logger.New(logger.Options{Format: cfg.LogFormat, Debug: cfg.DebugMode})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var transport bridge.Transport
	if cfg.HostURL != "" {
		c, err := wsrpc.Dial(ctx, cfg.HostURL, nil, slogger)
		if err != nil {
			slogger.Error("failed to reach host", "url", cfg.HostURL, "err", err)
			os.Exit(1)
		}
		defer c.Close()
		transport = c
	}

	simOpts := cfg.SimulatorOptions()
	simOpts.Logger = slogger
	sw := sdk.WithTransport(transport, sdk.Options{Simulator: simOpts, Logger: slogger})
	defer sw.Close()
	slogger.Info("host selected", "mode", sw.Mode())

	if err := purchase(ctx, sw.Host(), cfg.MerchantCode, *amount); err != nil {
		slogger.Error("purchase scenario failed", "err", err)
		os.Exit(1)
	}

	if *full {
		if err := runFlows(ctx, sw, cfg, slogger); err != nil {
			slogger.Error("protect flows failed", "err", err, "message", protect.UserMessage(err))
			os.Exit(1)
		}
	}
}

// purchase runs getUser, getCards, a reference number and a payment, and
// checks that the payment succeeded with the reference echoed back.
func purchase(ctx context.Context, host bridge.Host, merchant string, amount float64) error {
	user, err := host.GetUser(ctx)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	cards, err := host.GetCards(ctx)
	if err != nil {
		return fmt.Errorf("get cards: %w", err)
	}
	ref, err := host.RequestReferenceNumber(ctx, bridge.ReferenceRequest{
		MerchantCode: merchant,
		Product:      "beep™ Protect",
		Amount:       amount,
	})
	if err != nil {
		return fmt.Errorf("reference number: %w", err)
	}
	pay := host.RequestPayment(ctx, bridge.PaymentRequest{
		Amount:          amount,
		ProcessingFee:   ref.ProcessingFee,
		ReferenceNumber: ref.ReferenceNumber,
	})

	printJSON(map[string]any{
		"user":      user,
		"cards":     cards,
		"reference": ref,
		"payment":   pay,
	})

	if !pay.Succeeded() {
		return fmt.Errorf("payment status %q: %s", pay.Status, pay.Message)
	}
	if pay.ReferenceNumber != ref.ReferenceNumber {
		return errors.New("payment did not echo the reference number")
	}
	return nil
}

func runFlows(ctx context.Context, sw *sdk.Switch, cfg *config.Config, slogger *slog.Logger) error {
	svc, err := protect.New(sw, protect.Options{
		APIURL:       cfg.StereAPIURL,
		APIKey:       cfg.StereAPIKey,
		MerchantCode: cfg.MerchantCode,
		AppName:      cfg.AppName,
		Logger:       slogger,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	app := svc.Watch("")
	defer app.Close()
	if err := waitReady(ctx, app); err != nil {
		return err
	}

	applicants, err := svc.LoadApplicants(ctx)
	if err != nil {
		return err
	}
	first := applicants.Cards[0].CAN
	if _, err := svc.PickBirthDate(ctx, applicants, first); err != nil {
		return err
	}
	if !applicants.Valid() {
		return fmt.Errorf("applicant for card %s is incomplete", first)
	}

	quotes, err := svc.Enroll(ctx, applicants.Details())
	if err != nil {
		return err
	}
	summary := svc.OpenCheckout(ctx, quotes)
	slogger.Info("quote ready", "quote", summary.Quote.ID, "total", summary.Total)

	receipt, err := svc.Checkout(ctx, quotes)
	printJSON(receipt)
	if err != nil {
		return err
	}

	svc.RefreshPolicies(applicants.User.Email)
	dash, err := svc.Dashboard(ctx)
	if err != nil {
		return err
	}
	printJSON(dash)
	return nil
}

func waitReady(ctx context.Context, app *protect.App) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for !app.Ready() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("host never became ready: %w", ctx.Err())
		case <-tick.C:
		}
	}
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
