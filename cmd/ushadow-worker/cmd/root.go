// Package cmd implements the ushadow-worker process entry point: it
// registers with a leader (or reuses a previously issued node secret),
// heartbeats on an interval, and serves the worker agent's Docker-backed
// HTTP surface on port 8444 (spec.md §4.5, §6), in the teacher's
// cobra/viper/klog idiom.
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/textlogger"

	"github.com/ushadow-io/ushadow/internal/appctx"
	"github.com/ushadow-io/ushadow/internal/workerapi"
	"github.com/ushadow-io/ushadow/pkg/fleet"
	"github.com/ushadow-io/ushadow/pkg/health"
	"github.com/ushadow-io/ushadow/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "ushadow-worker [options]",
	Short: "Ushadow fleet worker agent",
	Long: `
Ushadow fleet worker agent

  # register against a leader with a fresh join token and start serving
  ushadow-worker --leader-url http://leader.mesh:8000 --token <join-token>

  # restart reusing the secret persisted on first registration
  ushadow-worker --leader-url http://leader.mesh:8000 --secret-file ./unode-secret`,
	Run: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("version") {
			fmt.Println(version.Version)
			return
		}
		initLogging()

		hostname := viper.GetString("hostname")
		if hostname == "" {
			hostname = hostnameOrEnv()
		}
		secretFile := viper.GetString("secret-file")
		fs := afero.NewOsFs()

		secret, err := loadOrRegister(cmd.Context(), fs, registrationConfig{
			leaderURL:  viper.GetString("leader-url"),
			token:      viper.GetString("token"),
			hostname:   hostname,
			meshIP:     viper.GetString("mesh-ip"),
			secretFile: secretFile,
		})
		if err != nil {
			klog.Errorf("register with leader: %v", err)
			os.Exit(1)
		}

		worker, err := appctx.NewWorker(hostname, secret)
		if err != nil {
			klog.Errorf("initialize worker: %v", err)
			os.Exit(1)
		}

		hc := health.NewHealthChecker()
		mux := http.NewServeMux()
		health.AttachHealthEndpoints(mux, hc)
		mux.Handle("/", workerapi.New(worker))

		addr := fmt.Sprintf(":%d", viper.GetInt("port"))
		srv := &http.Server{Addr: addr, Handler: mux}

		heartbeatCtx, cancelHeartbeat := context.WithCancel(context.Background())
		go heartbeatLoop(heartbeatCtx, viper.GetString("leader-url"), hostname)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		errChan := make(chan error, 1)
		go func() {
			klog.V(0).Infof("worker %q listening on %s", hostname, addr)
			hc.SetReady(true)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		select {
		case sig := <-sigChan:
			klog.V(0).Infof("received signal %v, shutting down", sig)
			hc.SetReady(false)
			cancelHeartbeat()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				klog.Errorf("error during shutdown: %v", err)
			}
		case err := <-errChan:
			klog.Errorf("worker server error: %v", err)
			cancelHeartbeat()
			os.Exit(1)
		}
	},
}

type registrationConfig struct {
	leaderURL  string
	token      string
	hostname   string
	meshIP     string
	secretFile string
}

// loadOrRegister returns the worker's node secret, reusing a previously
// persisted one (spec.md §9 "per-node secrets... never cached in
// plaintext across calls" governs the leader, not this on-disk bootstrap
// credential) rather than re-registering on every restart.
func loadOrRegister(ctx context.Context, fs afero.Fs, cfg registrationConfig) (string, error) {
	if cfg.secretFile != "" {
		if raw, err := afero.ReadFile(fs, cfg.secretFile); err == nil {
			return string(bytes.TrimSpace(raw)), nil
		}
	}
	if cfg.token == "" {
		return "", fmt.Errorf("no persisted secret at %q and no --token given", cfg.secretFile)
	}

	req := fleet.RegistrationRequest{
		Token:          cfg.token,
		Hostname:       cfg.hostname,
		MeshIP:         cfg.meshIP,
		Platform:       detectPlatform(),
		ManagerVersion: version.Version,
		Capabilities:   fleet.Capabilities{CanRunDocker: true},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.leaderURL+"/api/unodes/register", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpResp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("register request: %w", err)
	}
	defer httpResp.Body.Close()

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Secret  string `json:"secret"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("decode registration response: %w", err)
	}
	if !resp.Success {
		return "", fmt.Errorf("registration rejected: %s", resp.Message)
	}

	if cfg.secretFile != "" {
		if err := afero.WriteFile(fs, cfg.secretFile, []byte(resp.Secret), 0o600); err != nil {
			klog.Warningf("failed to persist node secret to %s: %v", cfg.secretFile, err)
		}
	}
	return resp.Secret, nil
}

func heartbeatLoop(ctx context.Context, leaderURL, hostname string) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb := fleet.Heartbeat{Hostname: hostname, Status: fleet.StatusOnline, ManagerVersion: version.Version}
			body, _ := json.Marshal(hb)
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, leaderURL+"/api/unodes/heartbeat", bytes.NewReader(body))
			if err != nil {
				klog.Warningf("heartbeat request: %v", err)
				continue
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				klog.Warningf("heartbeat failed: %v", err)
				continue
			}
			resp.Body.Close()
		}
	}
}

func detectPlatform() fleet.Platform {
	switch runtime.GOOS {
	case "linux":
		return fleet.PlatformLinux
	case "darwin":
		return fleet.PlatformMacOS
	case "windows":
		return fleet.PlatformWindows
	default:
		return fleet.PlatformUnknown
	}
}

func hostnameOrEnv() string {
	if h := os.Getenv("HOST_HOSTNAME"); h != "" {
		return h
	}
	h, err := os.Hostname()
	if err != nil {
		return "worker"
	}
	return h
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information and quit")
	rootCmd.Flags().IntP("log-level", "", 2, "Set the log level (from 0 to 9)")
	rootCmd.Flags().IntP("port", "p", 8444, "Port the worker agent HTTP API listens on")
	rootCmd.Flags().StringP("leader-url", "", "", "Base URL of the leader to register with and heartbeat")
	rootCmd.Flags().StringP("token", "", "", "Join token issued by the leader (required on first registration)")
	rootCmd.Flags().StringP("mesh-ip", "", "", "This node's mesh-VPN IP address")
	rootCmd.Flags().StringP("hostname", "", "", "Override the detected hostname")
	rootCmd.Flags().StringP("secret-file", "", "./unode-secret", "Where the issued node secret is persisted across restarts")
	_ = viper.BindPFlags(rootCmd.Flags())
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

	flagSet := flag.NewFlagSet("ushadow-worker", flag.ContinueOnError)
	klog.InitFlags(flagSet)
	if err := flagSet.Parse([]string{"--v", strconv.Itoa(logLevel)}); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing log level: %v\n", err)
	}
	klog.V(0).Infof("logging initialized with level %d", logLevel)
}
