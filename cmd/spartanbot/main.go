package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spartanbot/spartanbot/internal/alerting"
	"github.com/spartanbot/spartanbot/internal/api"
	"github.com/spartanbot/spartanbot/internal/config"
	"github.com/spartanbot/spartanbot/internal/events"
	"github.com/spartanbot/spartanbot/internal/market"
	"github.com/spartanbot/spartanbot/internal/notification"
	"github.com/spartanbot/spartanbot/internal/rental"
	"github.com/spartanbot/spartanbot/internal/storage"
	"github.com/spartanbot/spartanbot/internal/strategy"
)

func main() {
	root := &cobra.Command{
		Use:   "spartanbot",
		Short: "Automated profitability-driven hashrate rental",
	}
	root.AddCommand(serveCmd(), monitorCmd(), rentCmd(), providersCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("spartanbot: %v", err)
	}
}

// openBot builds a SpartanBot from config and restores persisted state.
// Restore failures are reported but leave the healthy providers usable.
func openBot(ctx context.Context, cfg config.Config) (*rental.SpartanBot, func(), error) {
	var st storage.Storage
	cleanup := func() {}

	if !cfg.MemoryOnly {
		var err error
		st, err = storage.Open(ctx, storage.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { st.Close() }
	} else {
		log.Printf("spartanbot: memory-only mode, persistence disabled")
	}

	bot := rental.New(st)
	if n := notification.New(cfg); n != nil {
		bot.SetNotifier(n)
	}
	if alertCfg := alerting.DefaultAlertConfig(); alertCfg.Enabled {
		bot.SetAlerter(failureAlerter{alerting.NewAlerter(alertCfg)})
	}

	if err := bot.Deserialize(ctx, nil); err != nil {
		log.Printf("spartanbot: restore: %v", err)
	}
	return bot, cleanup, nil
}

// failureAlerter bridges the rental core's alert hook to the webhook
// alerter.
type failureAlerter struct {
	a *alerting.Alerter
}

func (f failureAlerter) RentalFailed(ctx context.Context, req rental.Request, cause error) {
	f.a.RentalFailed(ctx, alerting.RentalAlert{
		Hashrate: req.Hashrate,
		Duration: req.Duration,
		Selector: req.ProviderSelector,
		Error:    cause.Error(),
	})
}

// envChainSource feeds the strategy the chain inputs from configuration.
type envChainSource struct{}

func (envChainSource) State(ctx context.Context) (strategy.ChainState, error) {
	return strategy.ChainState{
		Difficulty:     envFloat("SPARTANBOT_DIFFICULTY"),
		OwnedHashrate:  envFloat("SPARTANBOT_OWNED_HASHRATE"),
		TargetHashrate: envFloat("SPARTANBOT_TARGET_HASHRATE"),
	}, nil
}

func envFloat(key string) float64 {
	var v float64
	fmt.Sscanf(os.Getenv(key), "%g", &v)
	return v
}

func startMonitor(ctx context.Context, cfg config.Config, bot *rental.SpartanBot) {
	bus := events.NewBus()
	bot.ListenForTriggers(ctx, bus)

	gateway := market.NewHTTPGateway(market.Credentials{
		MRRAPIKey:      cfg.MRRAPIKey,
		MRRAPISecret:   cfg.MRRAPISecret,
		ExchangeAPIKey: cfg.ExchangeAPIKey,
		ExchangeAPIID:  cfg.ExchangeAPIID,
	}, cfg.MarketBaseURL, cfg.ExchangeBaseURL)

	strat := strategy.New(gateway, bus, strategy.Options{
		RentalDurationHours: cfg.RentalDurationHours,
		ProfitWeight:        cfg.ProfitWeight,
		TargetBlockTimeSecs: cfg.TargetBlockTimeSecs,
		BlockReward:         cfg.BlockReward,
	})

	interval := func() string {
		if v := bot.Setting("monitor_interval"); v != "" {
			return v
		}
		return cfg.MonitorInterval
	}

	go func() {
		if err := strat.Monitor(ctx, envChainSource{}, interval); err != nil && ctx.Err() == nil {
			log.Printf("spartanbot: monitor stopped: %v", err)
		}
	}()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control API and the profitability monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := config.FromEnv()
			bot, cleanup, err := openBot(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			startMonitor(ctx, cfg, bot)

			srv := &http.Server{Addr: cfg.ListenAddr, Handler: api.NewMux(bot, cfg.APIToken)}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			log.Printf("spartanbot listening on %s", cfg.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

func monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Run only the profitability monitor loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := config.FromEnv()
			bot, cleanup, err := openBot(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			startMonitor(ctx, cfg, bot)
			<-ctx.Done()
			return nil
		},
	}
}

func rentCmd() *cobra.Command {
	var (
		hashrate float64
		hours    float64
		yes      bool
	)
	cmd := &cobra.Command{
		Use:   "rent",
		Short: "Execute a one-shot manual rental",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromEnv()
			bot, cleanup, err := openBot(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			var confirm rental.ConfirmFunc
			if !yes {
				confirm = func(plan rental.RentalPlan) (bool, error) {
					fmt.Printf("Rent %.0f H/s for %s via %s (%s)? [y/N] ",
						plan.Hashrate, plan.Duration, plan.ProviderType, plan.ProviderUID)
					line, err := bufio.NewReader(os.Stdin).ReadString('\n')
					if err != nil {
						return false, err
					}
					answer := strings.ToLower(strings.TrimSpace(line))
					return answer == "y" || answer == "yes", nil
				}
			}

			receipt, err := bot.ManualRental(ctx, hashrate, time.Duration(hours*float64(time.Hour)), confirm)
			if err != nil {
				return err
			}
			fmt.Printf("rented %.0f H/s via %s, rental id %s\n", receipt.Hashrate, receipt.ProviderType, receipt.RentalID)
			return nil
		},
	}
	cmd.Flags().Float64Var(&hashrate, "hashrate", 0, "hashrate to rent, in H/s")
	cmd.Flags().Float64Var(&hours, "hours", 3, "rental duration in hours")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	cmd.MarkFlagRequired("hashrate")
	return cmd
}

func providersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Manage configured rental providers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured providers",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			bot, cleanup, err := openBot(ctx, config.FromEnv())
			if err != nil {
				return err
			}
			defer cleanup()
			for _, p := range bot.Providers() {
				fmt.Printf("%s\t%s\n", p.UID, p.Type)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "supported",
		Short: "List supported provider types",
		Run: func(c *cobra.Command, args []string) {
			bot := rental.New(nil)
			for _, t := range bot.SupportedRentalProviders() {
				fmt.Println(t)
			}
		},
	})

	var uid string
	remove := &cobra.Command{
		Use:   "remove",
		Short: "Remove a configured provider by uid",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			bot, cleanup, err := openBot(ctx, config.FromEnv())
			if err != nil {
				return err
			}
			defer cleanup()
			return bot.DeleteRentalProvider(ctx, uid)
		},
	}
	remove.Flags().StringVar(&uid, "uid", "", "provider uid")
	remove.MarkFlagRequired("uid")
	cmd.AddCommand(remove)

	return cmd
}
