// Package main provides the entry point for macpool-controller.
//
// macpool-controller is the control plane component that:
// - Watches MacPool resources and validates their MAC ranges
// - Builds one MAC allocator per MacPool and reports usage in its status
// - Serves MAC range operations and allocation over a Unix Socket
//
// Usage:
//
//	macpool-controller [flags]
//
// Flags:
//
//	--config string              Path to configuration file (default: uses env vars)
//	--kubeconfig string          Path to kubeconfig file (default: in-cluster config)
//	--leader-elect               Enable leader election for HA (default: true)
//	--leader-elect-namespace     Namespace for leader election lease (default: kube-system)
//	--metrics-bind-address       Address for metrics endpoint (default: :8080)
//	--health-bind-address        Address for healthz/readyz (default: :8081)
//	--log-level string           Log level: debug, info, warn, error (default: from config)
//
// Environment Variables:
//
//	MACPOOL_CONFIG_FILE          Path to configuration file
//	MACPOOL_DEFAULT_RANGES       Ranges of the "default" pool, e.g. "00:1a:4a:00:00:00-00:1a:4a:00:ff:ff"
//	MACPOOL_SOCKET_PATH          Unix socket of the pool service
//	MACPOOL_LOG_LEVEL            Log level
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	networkv1 "github.com/jiayi-1994/zstack-macpool/api/v1"
	"github.com/jiayi-1994/zstack-macpool/pkg/config"
	"github.com/jiayi-1994/zstack-macpool/pkg/events"
	"github.com/jiayi-1994/zstack-macpool/pkg/logging"
	"github.com/jiayi-1994/zstack-macpool/pkg/macpool"
	"github.com/jiayi-1994/zstack-macpool/pkg/metrics"
	"github.com/jiayi-1994/zstack-macpool/pkg/server"
	"github.com/jiayi-1994/zstack-macpool/pkg/types"
)

var (
	// scheme is the runtime scheme for the controller
	scheme = runtime.NewScheme()

	// Version information (set at build time)
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(networkv1.AddToScheme(scheme))
}

// Options contains command-line options for the controller
type Options struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// Kubeconfig is the path to kubeconfig file
	Kubeconfig string

	// LeaderElect enables leader election for HA
	LeaderElect bool

	// LeaderElectNamespace is the namespace for leader election lease
	LeaderElectNamespace string

	// LeaderElectLeaseDuration is the duration of the leader election lease
	LeaderElectLeaseDuration time.Duration

	// LeaderElectRenewDeadline is the deadline for renewing the lease
	LeaderElectRenewDeadline time.Duration

	// LeaderElectRetryPeriod is the period between lease acquisition retries
	LeaderElectRetryPeriod time.Duration

	// MetricsBindAddress is the address for metrics endpoint
	MetricsBindAddress string

	// HealthBindAddress serves healthz and readyz
	HealthBindAddress string

	// LogLevel overrides logging.level from configuration
	LogLevel string

	// PrintVersion prints version information and exits
	PrintVersion bool
}

func main() {
	opts := parseFlags()

	if opts.PrintVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := loadConfiguration(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	klog.Infof("Starting %s %s (commit: %s, built: %s)",
		types.ControllerName, version, gitCommit, buildDate)
	klog.Infof("Configuration loaded: maxAddresses=%d, previewLimit=%d, defaultRanges=%d, socket=%s",
		cfg.Pool.MaxAddresses, cfg.Pool.PreviewLimit, len(cfg.Pool.DefaultRanges), cfg.Server.SocketPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupSignalHandler(cancel)

	if err := runController(ctx, opts, cfg); err != nil {
		klog.Fatalf("Controller failed: %v", err)
	}

	klog.Info("Controller stopped")
}

// parseFlags parses command-line flags and returns Options
func parseFlags() *Options {
	opts := &Options{}

	flag.StringVar(&opts.ConfigFile, "config", "",
		"Path to configuration file (can also use MACPOOL_CONFIG_FILE env var)")
	flag.StringVar(&opts.Kubeconfig, "kubeconfig", "",
		"Path to kubeconfig file (default: in-cluster config)")
	flag.BoolVar(&opts.LeaderElect, "leader-elect", true,
		"Enable leader election for high availability")
	flag.StringVar(&opts.LeaderElectNamespace, "leader-elect-namespace", "kube-system",
		"Namespace for leader election lease")
	flag.DurationVar(&opts.LeaderElectLeaseDuration, "leader-elect-lease-duration", 15*time.Second,
		"Duration of the leader election lease")
	flag.DurationVar(&opts.LeaderElectRenewDeadline, "leader-elect-renew-deadline", 10*time.Second,
		"Deadline for renewing the leader election lease")
	flag.DurationVar(&opts.LeaderElectRetryPeriod, "leader-elect-retry-period", 2*time.Second,
		"Period between leader election lease acquisition retries")
	flag.StringVar(&opts.MetricsBindAddress, "metrics-bind-address", ":8080",
		"Address for metrics endpoint")
	flag.StringVar(&opts.HealthBindAddress, "health-bind-address", ":8081",
		"Address for healthz and readyz")
	flag.StringVar(&opts.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides configuration)")
	flag.BoolVar(&opts.PrintVersion, "version", false,
		"Print version information and exit")

	klog.InitFlags(nil)

	flag.Parse()

	return opts
}

// initLogging builds the structured logger and routes klog and
// controller-runtime through it.
func initLogging(cfg *config.Config) (*logging.Logger, error) {
	opts := cfg.LoggingOptions()
	opts.Development = cfg.Logging.Level == logging.LevelDebug

	if err := logging.InitGlobalLogger(opts); err != nil {
		return nil, err
	}
	logger := logging.L()

	ctrl.SetLogger(logger.Logger())
	klog.SetLogger(logger.Logger())

	// Set klog verbosity based on log level
	switch cfg.Logging.Level {
	case logging.LevelDebug:
		_ = flag.Set("v", "4")
	case logging.LevelInfo:
		_ = flag.Set("v", "2")
	case logging.LevelWarn:
		_ = flag.Set("v", "1")
	case logging.LevelError:
		_ = flag.Set("v", "0")
	}

	return logger, nil
}

// loadConfiguration loads the configuration from file and environment
func loadConfiguration(opts *Options) (*config.Config, error) {
	if opts.ConfigFile != "" {
		os.Setenv(types.EnvConfigFile, opts.ConfigFile)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.Kubeconfig != "" {
		cfg.Kubernetes.Kubeconfig = opts.Kubeconfig
	}
	if opts.LogLevel != "" {
		if !logging.ValidLevel(opts.LogLevel) {
			return nil, fmt.Errorf("invalid --log-level %q", opts.LogLevel)
		}
		cfg.Logging.Level = opts.LogLevel
	}

	return cfg, nil
}

// setupSignalHandler sets up signal handling for graceful shutdown
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		klog.Infof("Received signal %s, initiating shutdown...", sig)
		cancel()

		// Wait for second signal for force exit
		sig = <-sigCh
		klog.Infof("Received second signal %s, forcing exit", sig)
		os.Exit(1)
	}()
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("%s\n", types.ControllerName)
	fmt.Printf("  Version:    %s\n", version)
	fmt.Printf("  Git Commit: %s\n", gitCommit)
	fmt.Printf("  Build Date: %s\n", buildDate)
}

// restConfig returns the kubeconfig from the configured path, or the
// controller-runtime default lookup when none is set.
func restConfig(cfg *config.Config) (*rest.Config, error) {
	if cfg.Kubernetes.Kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", cfg.Kubernetes.Kubeconfig)
	}
	return ctrl.GetConfig()
}

// runController runs the main controller loop
func runController(ctx context.Context, opts *Options, cfg *config.Config) error {
	kubeconfig, err := restConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to get kubeconfig: %w", err)
	}

	metrics.Register()

	klog.Info("Creating controller manager...")
	mgr, err := ctrl.NewManager(kubeconfig, ctrl.Options{
		Scheme: scheme,
		Metrics: metricsserver.Options{
			BindAddress: opts.MetricsBindAddress,
		},
		HealthProbeBindAddress:  opts.HealthBindAddress,
		LeaderElection:          opts.LeaderElect,
		LeaderElectionID:        types.LeaderElectionID,
		LeaderElectionNamespace: opts.LeaderElectNamespace,
		LeaseDuration:           &opts.LeaderElectLeaseDuration,
		RenewDeadline:           &opts.LeaderElectRenewDeadline,
		RetryPeriod:             &opts.LeaderElectRetryPeriod,
	})
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to create clientset: %w", err)
	}
	recorder := events.NewRecorder(clientset, types.ControllerName, scheme)
	klog.V(2).Infof("Recording events as %s", recorder.Component())

	klog.V(2).Info("Registering MacPool controller")
	reconciler := macpool.NewMacPoolReconciler(mgr.GetClient(), mgr.GetScheme(), recorder, cfg)
	if err := reconciler.LoadDefaultPool(); err != nil {
		return err
	}
	if err := reconciler.SetupWithManager(mgr); err != nil {
		return fmt.Errorf("failed to setup MacPool controller: %w", err)
	}

	// Like the controller, the pool service only runs on the elected leader.
	srv := server.NewServer(cfg, reconciler)
	if err := mgr.Add(manager.RunnableFunc(srv.Run)); err != nil {
		return fmt.Errorf("failed to add pool server: %w", err)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		return fmt.Errorf("failed to add healthz check: %w", err)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		return fmt.Errorf("failed to add readyz check: %w", err)
	}

	klog.Info("Starting controller manager...")
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("manager failed: %w", err)
	}

	return nil
}
