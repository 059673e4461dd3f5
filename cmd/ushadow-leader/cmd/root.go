// Package cmd implements the ushadow-leader process entry point: it loads
// every store rooted at a data directory, assembles the deploy manager,
// and serves the leader's JSON API (spec.md §6) plus health and metrics
// endpoints, in the cobra/viper/klog idiom of the teacher's root command.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/textlogger"

	"github.com/ushadow-io/ushadow/internal/appctx"
	"github.com/ushadow-io/ushadow/internal/httpapi"
	"github.com/ushadow-io/ushadow/internal/metricsobs"
	"github.com/ushadow-io/ushadow/pkg/fleet"
	"github.com/ushadow-io/ushadow/pkg/health"
	"github.com/ushadow-io/ushadow/pkg/templates"
	"github.com/ushadow-io/ushadow/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "ushadow-leader [options]",
	Short: "Ushadow control-plane leader",
	Long: `
Ushadow control-plane leader

  # show this help
  ushadow-leader -h

  # shows version information
  ushadow-leader --version

  # start the leader on the default port, data rooted at ./data
  ushadow-leader --data-dir ./data

  # start with the wizard in cloud mode
  ushadow-leader --data-dir ./data --mode cloud`,
	Run: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("version") {
			fmt.Println(version.Version)
			return
		}
		initLogging()

		cfg := appctx.Config{
			DataDir:      viper.GetString("data-dir"),
			ComposeDir:   viper.GetString("compose-dir"),
			ProvidersDir: viper.GetString("providers-dir"),
			AppSecret:    viper.GetString("app-secret"),
			Mode:         templates.Mode(viper.GetString("mode")),
			Hostname:     hostnameOrEnv(),
		}
		if cfg.AppSecret == "" {
			klog.Errorf("--app-secret (or USHADOW_APP_SECRET) is required")
			os.Exit(1)
		}

		leader, err := appctx.NewLeader(cfg)
		if err != nil {
			klog.Errorf("initialize leader: %v", err)
			os.Exit(1)
		}

		metrics, promReg := metricsobs.New()
		hc := health.NewHealthChecker()

		mux := http.NewServeMux()
		health.AttachHealthEndpoints(mux, hc)
		mux.Handle("/metrics", metricsobs.Handler(promReg))
		mux.Handle("/", httpapi.New(leader))

		addr := fmt.Sprintf(":%d", viper.GetInt("port"))
		srv := &http.Server{Addr: addr, Handler: mux}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		stopMetrics := make(chan struct{})
		go reportFleetMetrics(leader, metrics, stopMetrics)

		errChan := make(chan error, 1)
		go func() {
			klog.V(0).Infof("leader listening on %s (mode=%s, data-dir=%s)", addr, cfg.Mode, cfg.DataDir)
			hc.SetReady(true)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		select {
		case sig := <-sigChan:
			klog.V(0).Infof("received signal %v, shutting down", sig)
			hc.SetReady(false)
			close(stopMetrics)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				klog.Errorf("error during shutdown: %v", err)
			}
		case err := <-errChan:
			klog.Errorf("leader server error: %v", err)
			close(stopMetrics)
			os.Exit(1)
		}
	},
}

// reportFleetMetrics polls the fleet and cluster stores on a short
// interval to keep the control-plane-level gauges current. The
// per-operation counters (deploy attempts/failures, heartbeats) are
// registered and exported, but nothing in this process increments them.
func reportFleetMetrics(leader *appctx.Leader, metrics *metricsobs.Registry, stop <-chan struct{}) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			online := 0
			for _, n := range leader.Fleet.List() {
				if n.Status == fleet.StatusOnline {
					online++
				}
			}
			metrics.NodesOnline.Set(float64(online))
			metrics.ClustersRegistered.Set(float64(len(leader.Clusters.List())))
		}
	}
}

func hostnameOrEnv() string {
	if h := os.Getenv("HOST_HOSTNAME"); h != "" {
		return h
	}
	h, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return h
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information and quit")
	rootCmd.Flags().IntP("log-level", "", 2, "Set the log level (from 0 to 9)")
	rootCmd.Flags().IntP("port", "p", 8000, "Port the leader HTTP API listens on")
	rootCmd.Flags().StringP("data-dir", "", "./data", "Root directory for persistent state (PROJECT_ROOT)")
	rootCmd.Flags().StringP("compose-dir", "", "./compose", "Directory of discoverable compose files")
	rootCmd.Flags().StringP("providers-dir", "", "./providers", "Directory of provider manifests")
	rootCmd.Flags().StringP("app-secret", "", "", "Application auth secret used to derive the node-secret/kubeconfig encryption key")
	rootCmd.Flags().StringP("mode", "", "local", "Wizard mode for ambient-singleton provider selection (local|cloud)")
	_ = viper.BindPFlags(rootCmd.Flags())
	viper.SetEnvPrefix("ushadow")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}

func initLogging() {
	logLevel := viper.GetInt("log-level")
	if logLevel < 0 {
		logLevel = 2
	}
	config := textlogger.NewConfig(
		textlogger.Output(os.Stderr),
		textlogger.Verbosity(logLevel),
	)
	klog.SetLoggerWithOptions(textlogger.NewLogger(config))

	flagSet := flag.NewFlagSet("ushadow-leader", flag.ContinueOnError)
	klog.InitFlags(flagSet)
	if err := flagSet.Parse([]string{"--v", strconv.Itoa(logLevel)}); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing log level: %v\n", err)
	}
	klog.V(0).Infof("logging initialized with level %d", logLevel)
}
