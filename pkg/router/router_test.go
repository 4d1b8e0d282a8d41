package router

import (
	"testing"

	"github.com/postwright/postwright/pkg/config"
	"github.com/postwright/postwright/pkg/models"
)

func providers() []config.ProviderConfig {
	return []config.ProviderConfig{
		{Name: "gemini", Type: "gemini", APIKey: "gm-1"},
		{Name: "openai", Type: "openai", APIKey: "sk-1"},
	}
}

func TestResolveNoRoutes(t *testing.T) {
	r := New(&config.Config{Providers: providers()})

	text, err := r.Resolve(config.CapabilityText, models.JobTextGeneration)
	if err != nil {
		t.Fatal(err)
	}
	if text.Provider.Name != "gemini" || text.Model != "gemini-2.5-flash" {
		t.Errorf("unexpected text route: %+v", text)
	}

	tr, err := r.Resolve(config.CapabilityTranscription, models.JobReelAnalysis)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Provider.Name != "openai" || tr.Model != "whisper-1" {
		t.Errorf("unexpected transcription route: %+v", tr)
	}
}

func TestResolveJobSpecificWins(t *testing.T) {
	cfg := &config.Config{
		Providers: providers(),
		Router: config.RouterConfig{
			Routes: []config.RouteConfig{
				{Capability: config.CapabilityText, Provider: "gemini", Model: "gemini-2.5-flash"},
				{Capability: config.CapabilityText, Job: "reel_analysis", Provider: "openai"},
			},
		},
	}
	r := New(cfg)

	reel, err := r.Resolve(config.CapabilityText, models.JobReelAnalysis)
	if err != nil {
		t.Fatal(err)
	}
	if reel.Provider.Name != "openai" || reel.Model != "gpt-4o-mini" {
		t.Errorf("expected openai default model, got %+v", reel)
	}

	gen, err := r.Resolve(config.CapabilityText, models.JobTextGeneration)
	if err != nil {
		t.Fatal(err)
	}
	if gen.Provider.Name != "gemini" {
		t.Errorf("expected generic route, got %+v", gen)
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	cfg := &config.Config{
		Providers: providers(),
		Router: config.RouterConfig{
			Routes: []config.RouteConfig{{Capability: config.CapabilityText, Provider: "mistral"}},
		},
	}
	if _, err := New(cfg).Resolve(config.CapabilityText, models.JobTextGeneration); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestResolveNoCapableProvider(t *testing.T) {
	cfg := &config.Config{Providers: []config.ProviderConfig{{Name: "gemini", Type: "gemini"}}}
	if _, err := New(cfg).Resolve(config.CapabilityTranscription, models.JobReelAnalysis); err == nil {
		t.Error("expected error when no provider transcribes")
	}
}

func TestResolveNoProviders(t *testing.T) {
	if _, err := New(&config.Config{}).Resolve(config.CapabilityText, models.JobTextGeneration); err == nil {
		t.Error("expected error with no providers")
	}
}
