// Package router picks the provider and model that serve a capability for a
// job kind.
package router

import (
	"fmt"

	"github.com/postwright/postwright/pkg/config"
	"github.com/postwright/postwright/pkg/models"
)

// Route represents a resolved provider and model.
type Route struct {
	Provider config.ProviderConfig
	Model    string
}

// Default models per provider type and capability.
var defaultModels = map[string]map[string]string{
	"gemini": {
		config.CapabilityText:  "gemini-2.5-flash",
		config.CapabilityImage: "gemini-2.5-flash-image",
	},
	"openai": {
		config.CapabilityText:          "gpt-4o-mini",
		config.CapabilityTranscription: "whisper-1",
	},
}

// Router resolves capabilities to provider+model routes.
type Router struct {
	cfg *config.Config
}

// New creates a Router from the given configuration.
func New(cfg *config.Config) *Router {
	return &Router{cfg: cfg}
}

// Resolve returns the route for capability in job. A route naming the job
// wins over a route for every job; with no matching route the first
// provider able to serve the capability is used with its default model.
// A single route is returned: jobs make at most one attempt per call.
func (r *Router) Resolve(capability string, job models.JobKind) (Route, error) {
	if len(r.cfg.Providers) == 0 {
		return Route{}, fmt.Errorf("no providers configured")
	}

	var generic *config.RouteConfig
	for i, route := range r.cfg.Router.Routes {
		if route.Capability != capability {
			continue
		}
		if route.Job == string(job) {
			return r.build(route)
		}
		if route.Job == "" && generic == nil {
			generic = &r.cfg.Router.Routes[i]
		}
	}
	if generic != nil {
		return r.build(*generic)
	}

	// No matching route: first capable provider.
	for _, p := range r.cfg.Providers {
		if model, ok := defaultModels[p.Type][capability]; ok {
			return Route{Provider: p, Model: model}, nil
		}
	}
	return Route{}, fmt.Errorf("no provider can serve %s", capability)
}

func (r *Router) build(route config.RouteConfig) (Route, error) {
	provider, ok := r.cfg.Provider(route.Provider)
	if !ok {
		return Route{}, fmt.Errorf("route %s/%s: unknown provider %q", route.Capability, route.Job, route.Provider)
	}
	model := route.Model
	if model == "" {
		model = defaultModels[provider.Type][route.Capability]
	}
	if model == "" {
		return Route{}, fmt.Errorf("route %s/%s: provider %q has no default model", route.Capability, route.Job, route.Provider)
	}
	return Route{Provider: provider, Model: model}, nil
}
