// Package main is the entry point for the leadrunner runner.
// The runner executes the workflow end to end: it provisions the
// workspace, runs the discovery script, publishes the result file when
// it changed and collects diagnostics when the run fails.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"leadrunner/internal/artifact"
	"leadrunner/internal/config"
	"leadrunner/internal/logger"
	"leadrunner/internal/observability"
	"leadrunner/internal/provision"
	"leadrunner/internal/publish"
	"leadrunner/internal/runner"
	"leadrunner/internal/runner/runtime"
	"leadrunner/internal/store/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup Database
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close()

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "leadrunner-runner", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()
	runMetrics, err := observability.NewRunMetrics()
	if err != nil {
		log.Fatalf("Failed to create run metrics: %v", err)
	}

	// Start a dedicated metrics server on port 6163
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		log.Println("Runner metrics listening on :6163")
		if err := http.ListenAndServe(":6163", mux); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "leadrunner", "workspace")
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "leadrunner", "cache")
	}
	artifactDir := cfg.ArtifactDir
	if artifactDir == "" {
		artifactDir = filepath.Join(os.TempDir(), "leadrunner", "artifacts")
	}

	// Select runtime based on configuration
	var rt runtime.Runtime
	switch cfg.Runtime {
	case "exec":
		rt = runtime.NewExecRuntime(workDir)
		log.Printf("Using exec runtime (workdir: %s)", workDir)
	case "kubernetes":
		k8sRT, err := runtime.NewKubernetesRuntime(runtime.KubernetesConfig{
			Namespace:          cfg.KubernetesNamespace,
			ServiceAccount:     cfg.KubernetesServiceAccount,
			DefaultCPULimit:    cfg.KubernetesCPULimit,
			DefaultMemoryLimit: cfg.KubernetesMemoryLimit,
		})
		if err != nil {
			log.Fatalf("Failed to create Kubernetes runtime: %v", err)
		}
		rt = k8sRT
		log.Printf("Using kubernetes runtime (namespace: %s)", cfg.KubernetesNamespace)
	case "docker":
		dockerRT, err := runtime.NewDockerRuntime()
		if err != nil {
			log.Fatalf("Failed to create Docker runtime: %v", err)
		}
		rt = dockerRT
		log.Println("Using docker runtime")
	}

	provisioner := provision.New(provision.Options{
		RepoURL:            cfg.RepoURL,
		Branch:             cfg.RepoBranch,
		WorkDir:            workDir,
		CacheDir:           cacheDir,
		Manifest:           cfg.Manifest,
		Interpreter:        cfg.Interpreter,
		InterpreterVersion: cfg.RuntimeVersion,
		CredentialsFile:    cfg.CredentialsFile,
		CredentialsSecret:  cfg.GSheetCreds,
	}, slogger)

	publisher := &publish.Publisher{
		Dir:    workDir,
		Branch: cfg.RepoBranch,
		// Used-phrase history travels with the result file so reruns
		// never repeat a consumed phrase.
		Files:       []string{cfg.ResultFile, "used_phrases_log.json"},
		BotName:     cfg.BotName,
		BotEmail:    cfg.BotEmail,
		Message:     cfg.CommitMessage,
		MaxAttempts: cfg.PublishAttempts,
		Log:         slogger,
	}

	collector, err := artifact.NewStore(artifactDir, db, slogger)
	if err != nil {
		log.Fatalf("Failed to create artifact store: %v", err)
	}

	pipeline := runner.NewPipeline(
		runner.PipelineOptions{
			Workflow:        cfg.Workflow,
			Image:           cfg.RuntimeImage,
			Command:         cfg.Command,
			RunTimeout:      cfg.RunTimeout,
			ControllerURL:   cfg.ControllerURL,
			LogFile:         cfg.LogFile,
			CredentialsFile: cfg.CredentialsFile,
			SerperAPIKey:    cfg.SerperAPIKey,
			GSheetName:      cfg.GSheetName,
		},
		db, db, nil, rt, provisioner, publisher, collector,
		runMetrics, slogger,
	)

	agent := runner.New(db, nil, pipeline, runner.AgentConfig{
		Workflow:         cfg.Workflow,
		ScheduleInterval: cfg.ScheduleInterval,
		PollInterval:     cfg.PollInterval,
		MaxBackoff:       cfg.MaxBackoff,
	}, slogger)

	log.Printf("Runner started for workflow %s", cfg.Workflow)
	go agent.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down runner...")
	cancel()

	<-agent.Done()
}
