package llm

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ideagrid/orchestrator/core"
)

// ProviderFactory defines the interface for LLM provider factories.
type ProviderFactory interface {
	// Create creates a new AI client instance with the given configuration.
	Create(config *AIConfig) core.AIClient

	// DetectEnvironment checks if this provider can be used with the
	// current environment. Returns priority (higher = preferred) and
	// availability.
	DetectEnvironment() (priority int, available bool)

	// Name returns the provider's name.
	Name() string

	// Description returns a human-readable description.
	Description() string
}

// ProviderRegistry manages registered LLM providers.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]ProviderFactory
}

var registry = &ProviderRegistry{
	providers: make(map[string]ProviderFactory),
}

// Register registers a new LLM provider factory. This is typically called
// from init() functions in provider packages.
func Register(factory ProviderFactory) error {
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	name := factory.Name()
	if name == "" {
		return fmt.Errorf("factory.Name() cannot be empty")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.providers[name]; exists {
		return fmt.Errorf("provider '%s' already registered", name)
	}

	registry.providers[name] = factory
	return nil
}

// MustRegister registers a provider and panics on error. Use this in
// init() functions where errors cannot be handled.
func MustRegister(factory ProviderFactory) {
	if err := Register(factory); err != nil {
		panic(fmt.Sprintf("failed to register provider: %v", err))
	}
}

// GetProvider retrieves a registered provider by name.
func GetProvider(name string) (ProviderFactory, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	factory, exists := registry.providers[name]
	return factory, exists
}

// ListProviders returns all registered provider names, sorted.
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.providers))
	for name := range registry.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderInfo describes a registered provider's detection result.
type ProviderInfo struct {
	Name        string
	Description string
	Available   bool
	Priority    int
}

// GetProviderInfo returns information about all registered providers,
// sorted by priority (highest first), then name.
func GetProviderInfo() []ProviderInfo {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	info := make([]ProviderInfo, 0, len(registry.providers))
	for name, factory := range registry.providers {
		priority, available := factory.DetectEnvironment()
		info = append(info, ProviderInfo{
			Name:        name,
			Description: factory.Description(),
			Available:   available,
			Priority:    priority,
		})
	}

	sort.Slice(info, func(i, j int) bool {
		if info[i].Priority != info[j].Priority {
			return info[i].Priority > info[j].Priority
		}
		return info[i].Name < info[j].Name
	})

	return info
}

type candidate struct {
	name     string
	priority int
}

// detectBestProvider finds the highest-priority available provider from
// the registry, used when AIConfig.Provider is "auto".
func detectBestProvider(logger core.Logger) (string, error) {
	startTime := time.Now()
	var candidates []candidate

	if logger != nil {
		logger.Info("starting llm provider environment detection", map[string]interface{}{
			"operation":            "provider_detection",
			"registered_providers": len(registry.providers),
		})
	}

	registry.mu.RLock()
	defer registry.mu.RUnlock()

	for name, factory := range registry.providers {
		priority, available := factory.DetectEnvironment()

		if logger != nil {
			logger.Debug("provider environment check", map[string]interface{}{
				"operation": "provider_check",
				"provider":  name,
				"priority":  priority,
				"available": available,
			})
		}

		if available {
			candidates = append(candidates, candidate{name: name, priority: priority})
		}
	}

	if len(candidates) == 0 {
		if registryMetrics := core.GetGlobalMetricsRegistry(); registryMetrics != nil {
			registryMetrics.Counter("llm.provider.detection", "status", "no_providers")
		}
		if logger != nil {
			logger.Error("no llm providers detected in environment", map[string]interface{}{
				"operation":         "provider_detection",
				"checked_providers": len(registry.providers),
				"suggestion":        "set OLLAMA_HOST or GOOGLE_API_KEY, or force provider=mock",
			})
		}
		return "", fmt.Errorf("no provider detected in environment")
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].priority > candidates[j].priority
	})

	selected := candidates[0].name
	detectionDuration := time.Since(startTime)

	if registryMetrics := core.GetGlobalMetricsRegistry(); registryMetrics != nil {
		registryMetrics.Histogram("llm.provider.detection.duration_ms", float64(detectionDuration.Milliseconds()), "status", "success")
		registryMetrics.Counter("llm.provider.selected", "provider", selected)
	}

	if logger != nil {
		logger.Info("llm provider selected", map[string]interface{}{
			"operation":          "provider_selection",
			"selected_provider":  selected,
			"selection_priority": candidates[0].priority,
			"total_candidates":   len(candidates),
		})
	}

	return selected, nil
}
