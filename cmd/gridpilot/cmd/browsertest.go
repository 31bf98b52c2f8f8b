package cmd

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voluzi/gridpilot/internal/browser"
	"github.com/voluzi/gridpilot/internal/environ"
	"github.com/voluzi/gridpilot/internal/insider"
)

var (
	hubURL        string
	waitTimeout   time.Duration
	screenshotDir string
	scenarioNames []string
)

var browserTestCmd = &cobra.Command{
	Use:   "browsertest",
	Short: "Runs the useinsider.com browser scenarios",
	Long: `Runs the browser scenarios against useinsider.com, either through a Selenium grid
or with a local headless Chrome when no hub URL is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := browser.DefaultConfig()
		cfg.HubURL = hubURL
		cfg.WaitTimeout = waitTimeout
		cfg.ScreenshotDir = screenshotDir

		scenarios, err := insider.Select(scenarioNames)
		if err != nil {
			return err
		}

		start := time.Now()
		err = insider.RunAll(cmd.Context(), browser.NewOpener(cfg), scenarios)
		log.WithField("time-elapsed", time.Since(start)).Info("browser scenarios finished")
		return err
	},
}

func init() {
	browserTestCmd.Flags().StringVar(&hubURL,
		"hub-url",
		environ.GetString("SELENIUM_HUB_URL", ""),
		"Selenium grid URL, e.g. http://selenium-hub:4444/wd/hub. Empty starts a local Chrome.",
	)

	browserTestCmd.Flags().DurationVar(&waitTimeout,
		"wait-timeout",
		environ.GetDuration("WAIT_TIMEOUT", browser.DefaultConfig().WaitTimeout),
		"Timeout of every explicit wait.",
	)

	browserTestCmd.Flags().StringVar(&screenshotDir,
		"screenshot-dir",
		environ.GetString("SCREENSHOT_DIR", "."),
		"Directory receiving failure screenshots.",
	)

	browserTestCmd.Flags().StringSliceVar(&scenarioNames,
		"scenarios",
		environ.GetStringSlice("SCENARIOS", insider.Names()),
		"Scenarios to run, in order.",
	)

	rootCmd.AddCommand(browserTestCmd)
}
