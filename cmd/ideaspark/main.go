// Command ideaspark runs one end-to-end creative-ideation workflow from the
// command line: generate, evaluate, select, advocate/skeptic, improve,
// re-evaluate, printing the enriched top candidates as JSON. It is a thin
// wiring layer over the orchestrator package; all workflow logic lives
// there. Grounded on the teacher's examples/ai-multi-provider/main.go
// (env/flag-driven config, provider blank-imports, getEnvOrDefault idiom).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ideagrid/orchestrator/cache"
	"github.com/ideagrid/orchestrator/core"
	"github.com/ideagrid/orchestrator/evaluator"
	"github.com/ideagrid/orchestrator/inference"
	"github.com/ideagrid/orchestrator/llm"
	"github.com/ideagrid/orchestrator/model"
	"github.com/ideagrid/orchestrator/monitor"
	"github.com/ideagrid/orchestrator/orchestrator"
	"github.com/ideagrid/orchestrator/resilience"
	"github.com/ideagrid/orchestrator/temperature"

	_ "github.com/ideagrid/orchestrator/llm/providers/local"
	_ "github.com/ideagrid/orchestrator/llm/providers/mock"
	_ "github.com/ideagrid/orchestrator/llm/providers/remote"
)

func main() {
	var (
		topic                = flag.String("topic", "", "the idea-generation topic (required)")
		context_             = flag.String("context", "", "additional context/constraints for the topic")
		numTop               = flag.Int("top", orchestrator.DefaultTopCandidates, "number of top candidates to fully enrich")
		presetFlag           = flag.String("temperature", string(temperature.PresetBalanced), "temperature preset: conservative|balanced|creative|wild")
		enhancedReasoning    = flag.Bool("enhanced-reasoning", true, "run advocate+skeptic stages")
		multiDimEval         = flag.Bool("multi-dim-eval", false, "run the seven-dimension evaluator alongside scoring")
		logicalInference     = flag.Bool("logical-inference", false, "run logical-inference analysis on top candidates")
		logicalInferenceType = flag.String("logical-inference-type", string(model.AnalysisFull), "full|causal|constraints|contradiction|implications")
		noveltyFilter        = flag.Bool("novelty-filter", true, "drop near-duplicate generated ideas before scoring")
		similarityThreshold  = flag.Float64("similarity-threshold", 0, "novelty filter threshold override (0 uses the package default)")
		timeout              = flag.Duration("timeout", 2*time.Minute, "overall run deadline")
		perCallTimeout       = flag.Duration("per-call-timeout", 0, "per-LLM-call timeout override (0 uses the 30s default)")
		perStageTimeout      = flag.Duration("per-stage-timeout", 0, "per-stage timeout override (0 uses the 60s default)")
		pipelineConfigPath   = flag.String("pipeline-config", "", "optional YAML file overriding dimension weights/temperature/model tiers")
		redisAddr            = flag.String("redis-addr", "", "optional Redis address for run-state checkpointing (empty uses in-memory)")
		mockLLM              = flag.Bool("mock", false, "force the deterministic mock provider instead of local/remote")
	)
	flag.Parse()

	if *topic == "" {
		fmt.Fprintln(os.Stderr, "ideaspark: -topic is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, runConfig{
		topic:                *topic,
		context:              *context_,
		numTop:               *numTop,
		preset:               temperature.Preset(*presetFlag),
		enhancedReasoning:    *enhancedReasoning,
		multiDimEval:         *multiDimEval,
		logicalInference:     *logicalInference,
		logicalInferenceType: model.AnalysisType(*logicalInferenceType),
		noveltyFilter:        *noveltyFilter,
		similarityThreshold:  *similarityThreshold,
		timeout:              *timeout,
		perCallTimeout:       *perCallTimeout,
		perStageTimeout:      *perStageTimeout,
		pipelineConfigPath:   *pipelineConfigPath,
		redisAddr:            *redisAddr,
		mockLLM:              *mockLLM,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "ideaspark: %v\n", err)
		os.Exit(1)
	}
}

type runConfig struct {
	topic, context       string
	numTop               int
	preset               temperature.Preset
	enhancedReasoning    bool
	multiDimEval         bool
	logicalInference     bool
	logicalInferenceType model.AnalysisType
	noveltyFilter        bool
	similarityThreshold  float64
	timeout              time.Duration
	perCallTimeout       time.Duration
	perStageTimeout      time.Duration
	pipelineConfigPath   string
	redisAddr            string
	mockLLM              bool
}

func run(ctx context.Context, rc runConfig) error {
	cfg, err := buildConfig(rc)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := core.NewProductionLogger(cfg.Logging, cfg.Development, "ideaspark")

	pipelineCfg, err := core.LoadPipelineConfig(rc.pipelineConfigPath)
	if err != nil {
		return err
	}

	router, cacheInstance, err := buildRouter(cfg, pipelineCfg, logger)
	if err != nil {
		return err
	}
	defer cacheInstance.Close()

	mon := monitor.New(monitor.Options{Logger: logger})

	var eval *evaluator.Evaluator
	if rc.multiDimEval {
		eval, err = evaluator.New(evaluator.Options{
			Router:      router,
			Logger:      logger,
			Weights:     dimensionWeights(pipelineCfg),
			Temperature: cfg.LLM.Temperature,
		})
		if err != nil {
			return fmt.Errorf("configuring multi-dimensional evaluator: %w", err)
		}
	}

	var infEngine *inference.Engine
	if rc.logicalInference {
		base, err := temperature.BaseFromPreset(rc.preset)
		if err != nil {
			return err
		}
		if v, ok := pipelineCfg.TemperatureOverrides[string(rc.preset)]; ok {
			base = v
		}
		infEngine = inference.New(router, float32(base))
	}

	stateStore, closeStore, err := buildStateStore(rc.redisAddr)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	o, err := orchestrator.New(orchestrator.Options{
		Router:      router,
		Monitor:     mon,
		Evaluator:   eval,
		Inference:   infEngine,
		Logger:      logger,
		StateStore:  stateStore,
		RetryConfig: retryConfigFromPreset(cfg.Resilience.Retry),
	})
	if err != nil {
		return fmt.Errorf("constructing orchestrator: %w", err)
	}

	opts := orchestrator.DefaultRunOptions()
	opts.NumTopCandidates = rc.numTop
	opts.TemperaturePreset = rc.preset
	if v, ok := pipelineCfg.TemperatureOverrides[string(rc.preset)]; ok {
		opts.Temperature = &v
	}
	opts.EnhancedReasoning = rc.enhancedReasoning
	opts.MultiDimensionalEval = rc.multiDimEval
	opts.LogicalInference = rc.logicalInference
	opts.LogicalInferenceType = rc.logicalInferenceType
	opts.NoveltyFilterEnabled = rc.noveltyFilter
	if rc.similarityThreshold > 0 {
		opts.SimilarityThreshold = rc.similarityThreshold
	}
	opts.Timeout = rc.timeout
	opts.PerCallTimeout = rc.perCallTimeout
	opts.PerStageTimeout = rc.perStageTimeout
	opts.Progress = func(message string, fraction float64) {
		logger.Info("progress", map[string]interface{}{"message": message, "fraction": fraction})
	}

	results, err := o.Run(ctx, rc.topic, rc.context, opts)
	if err != nil {
		return fmt.Errorf("running workflow: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func retryConfigFromPreset(p core.RetryPreset) *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:   p.MaxAttempts,
		InitialDelay:  p.InitialDelay,
		MaxDelay:      p.MaxDelay,
		BackoffFactor: p.BackoffFactor,
		JitterEnabled: true,
	}
}

func buildConfig(rc runConfig) (*core.Config, error) {
	opts := []core.Option{}
	if rc.mockLLM {
		opts = append(opts, core.WithProvider("mock"), core.WithMockLLM(true))
	}
	cfg, err := core.NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildRouter assembles every registered provider this process can reach
// into the map llm.NewRouter expects, keyed "local"/"remote"/"mock", the
// names Router.resolvePrimary selects.
func buildRouter(cfg *core.Config, pipelineCfg *core.PipelineConfig, logger core.Logger) (*llm.Router, *cache.Cache, error) {
	cacheInstance := cache.New(cache.Options{
		Enabled:   cfg.Cache.Enabled,
		Dir:       cfg.Cache.Dir,
		TTL:       cfg.Cache.TTL,
		MaxSizeMB: cfg.Cache.MaxSizeMB,
		Logger:    logger,
	})

	clients := make(map[string]core.AIClient)
	for _, name := range []string{"local", "remote", "mock"} {
		factory, ok := llm.GetProvider(name)
		if !ok {
			continue
		}
		if _, available := factory.DetectEnvironment(); !available && cfg.LLM.Provider != name && cfg.LLM.Provider != "auto" {
			continue
		}
		clients[name] = factory.Create(&llm.AIConfig{
			Provider:    name,
			APIKey:      cfg.LLM.RemoteAPIKey,
			BaseURL:     cfg.LLM.LocalHost,
			Timeout:     cfg.LLM.Timeout,
			MaxRetries:  cfg.LLM.MaxRetries,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Logger:      logger,
		})
	}
	if len(clients) == 0 {
		return nil, nil, core.ErrNoProviderConfigured
	}

	localModelFast := cfg.LLM.LocalModelFast
	localModelBalanced := cfg.LLM.LocalModelBalance
	remoteModel := cfg.LLM.RemoteModel
	if pipelineCfg != nil {
		if v, ok := pipelineCfg.ModelsByTier["fast"]; ok {
			localModelFast = v
		}
		if v, ok := pipelineCfg.ModelsByTier["balanced"]; ok {
			localModelBalanced = v
		}
		if v, ok := pipelineCfg.ModelsByTier["quality"]; ok {
			remoteModel = v
		}
	}

	router := llm.NewRouter(llm.RouterConfig{
		PrimaryProvider:    cfg.LLM.Provider,
		ModelTier:          cfg.LLM.ModelTier,
		FallbackEnabled:    cfg.LLM.FallbackEnabled,
		CacheEnabled:       cfg.Cache.Enabled,
		CacheTTL:           cfg.Cache.TTL,
		LocalModelFast:     localModelFast,
		LocalModelBalanced: localModelBalanced,
		RemoteModel:        remoteModel,
	}, clients, cacheInstance, logger, nil)

	return router, cacheInstance, nil
}

func dimensionWeights(pipelineCfg *core.PipelineConfig) map[evaluator.Dimension]float64 {
	if pipelineCfg == nil || len(pipelineCfg.DimensionWeights) == 0 {
		return nil
	}
	weights := make(map[evaluator.Dimension]float64, len(pipelineCfg.DimensionWeights))
	for name, w := range pipelineCfg.DimensionWeights {
		weights[evaluator.Dimension(name)] = w
	}
	return weights
}

// buildStateStore returns the configured StateStore and an optional closer.
// An empty addr uses the in-memory default, matching DESIGN.md's decision
// that Redis-backed checkpointing is opt-in observability, not a
// requirement of Run.
func buildStateStore(addr string) (orchestrator.StateStore, func(), error) {
	if addr == "" {
		return orchestrator.NewMemoryStateStore(), nil, nil
	}
	store := orchestrator.NewRedisStateStore(addr, 24*time.Hour)
	return store, func() { _ = store.Close() }, nil
}
